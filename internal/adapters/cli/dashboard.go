package cli

import (
	"context"
	"fmt"
	"os"

	"yourobc-billing/internal/app"

	"github.com/spf13/cobra"
)

func (r *runner) dashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Recompute, show and export the accounting dashboard",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute today's dashboard from every invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.RefreshDashboard(ctx)
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the latest dashboard snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.GetDashboard(ctx)
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the latest dashboard snapshot as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				if err := writeFile(args[0], func(f *os.File) error { return svc.ExportDashboard(ctx, f) }); err != nil {
					return err
				}
				fmt.Fprintf(r.out, "dashboard written to %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(refresh, show, exportCmd)
	return cmd
}
