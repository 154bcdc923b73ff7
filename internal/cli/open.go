package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/ledger"
	"github.com/roach88/tillsync/internal/pos"
)

// OpenOptions holds flags for the open command.
type OpenOptions struct {
	*RootOptions
	Register string
	Store    string
	Location string
	User     string
	Cash     int64
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a cash-drawer batch on this register",
		Long: `Open a cash-drawer batch on this register.

The batch is recorded locally and queued for sync. If the register still has
an open batch, it is force-closed first.

Example:
  tillsync open --register reg-1 --user cashier-3 --cash 10000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Register, "register", "", "register id (defaults to config)")
	cmd.Flags().StringVar(&opts.Store, "store", "", "store id (defaults to config)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location id (defaults to config)")
	cmd.Flags().StringVar(&opts.User, "user", "", "cashier user id")
	cmd.Flags().Int64Var(&opts.Cash, "cash", 0, "starting cash in cents")

	return cmd
}

func runOpen(opts *OpenOptions, cmd *cobra.Command) error {
	eng, cfg, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	p := ledger.StartParams{
		UserID:       opts.User,
		StoreID:      firstNonEmpty(opts.Store, cfg.Register.StoreID),
		RegisterID:   firstNonEmpty(opts.Register, cfg.Register.RegisterID),
		LocationID:   firstNonEmpty(opts.Location, cfg.Register.LocationID),
		StartingCash: pos.Cents(opts.Cash),
	}

	b, err := eng.StartBatch(cmd.Context(), p)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open batch", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(b)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s opened on %s with %s\n",
		b.ID, b.RegisterID, FormatCents(b.StartingCash))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
