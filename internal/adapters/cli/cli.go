// Package cli is the cobra command tree for the billing admin tool. Commands
// call app.ApplicationService only; output is JSON unless stated otherwise.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"yourobc-billing/internal/app"

	"github.com/spf13/cobra"
)

// ServiceFactory opens the application service lazily so commands that need
// no database (number validate/parse) work offline. The returned func closes
// whatever the factory opened.
type ServiceFactory func(ctx context.Context) (app.ApplicationService, func(), error)

type runner struct {
	factory ServiceFactory
	actAs   string
	out     io.Writer
}

// NewRootCommand builds the `app` command tree.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	r := &runner{factory: factory, out: os.Stdout}

	root := &cobra.Command{
		Use:   "app",
		Short: "Billing administration: invoice numbers, exchange rates, invoices, dashboard",
		Long: `app is the administrative CLI of the billing service.

Mutating commands run as the user named by --as (default: $BILLING_CLI_USER,
then "admin"); role checks are the same as over HTTP.`,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)

	def := os.Getenv("BILLING_CLI_USER")
	if def == "" {
		def = "admin"
	}
	root.PersistentFlags().StringVar(&r.actAs, "as", def, "username to act as")
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		r.out = cmd.OutOrStdout()
	}

	root.AddCommand(
		r.numberCommand(),
		r.rateCommand(),
		r.invoiceCommand(),
		r.dashboardCommand(),
	)
	return root
}

// withService opens the service, attaches the --as actor and runs fn.
func (r *runner) withService(cmd *cobra.Command, fn func(ctx context.Context, svc app.ApplicationService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, closeFn, err := r.factory(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	actx, err := svc.ActAs(ctx, r.actAs)
	if err != nil {
		return fmt.Errorf("cannot act as %q: %w", r.actAs, err)
	}
	return fn(actx, svc)
}

func (r *runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
