package cli

import (
	"context"
	"fmt"
	"time"

	"yourobc-billing/internal/app"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func parseDateFlag(cmd *cobra.Command) (*time.Time, error) {
	s, _ := cmd.Flags().GetString("date")
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

func (r *runner) rateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Resolve, convert and record exchange rates",
	}

	resolve := &cobra.Command{
		Use:     "resolve <from> <to>",
		Short:   "Resolve a currency pair through the fallback chain",
		Example: "  app rate resolve USD EUR --date 2025-03-14",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := parseDateFlag(cmd)
			if err != nil {
				return err
			}
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.ResolveRate(ctx, app.RateRequest{From: args[0], To: args[1], AsOf: asOf})
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}
	resolve.Flags().String("date", "", "as-of date (YYYY-MM-DD, default: today)")

	convert := &cobra.Command{
		Use:     "convert <amount> <from> <to>",
		Short:   "Convert an amount, rounded to cents",
		Example: "  app rate convert 100 USD EUR",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			asOf, err := parseDateFlag(cmd)
			if err != nil {
				return err
			}
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.Convert(ctx, app.ConvertRequest{Amount: amount, From: args[1], To: args[2], AsOf: asOf})
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}
	convert.Flags().String("date", "", "as-of date (YYYY-MM-DD, default: today)")

	add := &cobra.Command{
		Use:     "add <from> <to> <rate>",
		Short:   "Record a daily quote, retiring the same-day active one",
		Example: "  app rate add USD EUR 0.91 --date 2025-03-14 --source ecb",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[2], err)
			}
			date, _ := cmd.Flags().GetString("date")
			source, _ := cmd.Flags().GetString("source")
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.CreateRate(ctx, app.CreateRateRequest{
					FromCurrency: args[0],
					ToCurrency:   args[1],
					Rate:         rate,
					Date:         date,
					Source:       source,
				})
				if err != nil {
					return err
				}
				return r.printJSON(res)
			})
		},
	}
	add.Flags().String("date", "", "quote date (YYYY-MM-DD, default: today)")
	add.Flags().String("source", "", "source label, e.g. ecb")

	list := &cobra.Command{
		Use:   "list [from] [to]",
		Short: "List recorded quotes",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to string
			if len(args) > 0 {
				from = args[0]
			}
			if len(args) > 1 {
				to = args[1]
			}
			all, _ := cmd.Flags().GetBool("all")
			return r.withService(cmd, func(ctx context.Context, svc app.ApplicationService) error {
				res, err := svc.ListRates(ctx, from, to, !all)
				if err != nil {
					return err
				}
				return r.printJSON(res.Rates)
			})
		},
	}
	list.Flags().Bool("all", false, "include retired quotes")

	cmd.AddCommand(resolve, convert, add, list)
	return cmd
}
