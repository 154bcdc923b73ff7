package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/pos"
)

// CloseOptions holds flags for the close command.
type CloseOptions struct {
	*RootOptions
	Cash int64
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CloseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "close <batch-id>",
		Short: "Close a batch with the counted drawer amount",
		Long: `Close a batch with the counted drawer amount.

The close is recorded locally and queued for sync behind the batch's open.

Example:
  tillsync close 0190a0b1-... --cash 48250`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClose(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Cash, "cash", 0, "closing cash in cents")

	return cmd
}

func runClose(opts *CloseOptions, batchID string, cmd *cobra.Command) error {
	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := eng.CloseBatch(cmd.Context(), batchID, pos.Cents(opts.Cash)); err != nil {
		return WrapExitError(ExitCommandError, "failed to close batch", err)
	}

	b, err := eng.Batches().Get(cmd.Context(), batchID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(b)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s closed with %s\n", b.ID, FormatCents(pos.Cents(opts.Cash)))
	return nil
}
