package cli

import (
	"context"
	"fmt"
	"os"

	"yourobc-billing/internal/app"

	"github.com/spf13/cobra"
)

func (r *runner) invoiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Generate, list and sweep invoices",
	}

	pod := &cobra.Command{
		Use:   "pod <shipment-id>",
		Short: "Generate the outgoing invoice for a delivered shipment",
		Long: `Generates the outgoing invoice for a shipment whose proof of delivery was
received. Safe to repeat: a second run reports success=false.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.CreateInvoiceFromPOD(ctx, args[0], nil)
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}

	sweep := &cobra.Command{
		Use:   "overdue-sweep",
		Short: "Mark sent invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.MarkOverdueInvoices(ctx)
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Show one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.GetInvoice(ctx, args[0])
				if err != nil {
					return err
				}
				return r.printJSON(res.Invoice)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := listFlags(cmd)
			out, _ := cmd.Flags().GetString("xlsx")
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				if out != "" {
					return writeFile(out, func(f *os.File) error { return svc.ExportInvoices(ctx, req, f) })
				}
				res, err := svc.ListInvoices(ctx, req)
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}
	list.Flags().String("type", "", "outgoing or incoming")
	list.Flags().String("status", "", "draft, sent, paid, overdue or cancelled")
	list.Flags().String("customer", "", "customer id")
	list.Flags().Int("limit", 0, "maximum rows (0 = all)")
	list.Flags().String("xlsx", "", "write an XLSX file instead of JSON")

	cmd.AddCommand(pod, sweep, show, list)
	return cmd
}

func listFlags(cmd *cobra.Command) app.ListInvoicesRequest {
	t, _ := cmd.Flags().GetString("type")
	s, _ := cmd.Flags().GetString("status")
	c, _ := cmd.Flags().GetString("customer")
	l, _ := cmd.Flags().GetInt("limit")
	return app.ListInvoicesRequest{Type: t, Status: s, CustomerID: c, Limit: l}
}

func writeFile(path string, render func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
