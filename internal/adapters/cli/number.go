package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"yourobc-billing/internal/app"
	"yourobc-billing/internal/core"

	"github.com/spf13/cobra"
)

func (r *runner) numberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "number",
		Short: "Inspect and administer monthly invoice numbering",
	}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the next invoice number without consuming it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.PreviewInvoiceNumber(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.out, res.InvoiceNumber)
				return nil
			})
		},
	}

	validate := &cobra.Command{
		Use:   "validate <number>",
		Short: "Check that a number is a well-formed YYMMNNNN invoice number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !core.IsValidInvoiceNumber(args[0]) {
				return fmt.Errorf("%s is not a valid invoice number", args[0])
			}
			fmt.Fprintf(r.out, "%s is valid\n", args[0])
			return nil
		},
	}

	parse := &cobra.Command{
		Use:   "parse <number>",
		Short: "Decompose an invoice number into year, month and sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParseInvoiceNumber(args[0])
			if err != nil {
				return err
			}
			return r.printJSON(p)
		},
	}

	stats := &cobra.Command{
		Use:   "stats [year] [month]",
		Short: "Show the counter for a month (default: current month)",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := periodArgs(args)
			if err != nil {
				return err
			}
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				s, err := svc.GetCounterStats(ctx, year, month)
				if err != nil {
					return err
				}
				return r.printJSON(s)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset <year> <month> <value>",
		Short: "Set a month's last issued sequence (admin only, audited)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := periodArgs(args[:2])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				c, err := svc.ResetCounter(ctx, year, month, value)
				if err != nil {
					return err
				}
				return r.printJSON(c)
			})
		},
	}

	cmd.AddCommand(preview, validate, parse, stats, reset)
	return cmd
}

func periodArgs(args []string) (int, int, error) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if len(args) > 0 {
		y, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("year must be an integer: %w", err)
		}
		year = y
	}
	if len(args) > 1 {
		m, err := strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("month must be an integer: %w", err)
		}
		month = m
	}
	return year, month, nil
}
