package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/pos"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [entity-id]",
		Short: "Show queue status, or one entity's sync state",
		Long: `Show queue status, or one entity's sync state.

Without arguments, prints command counts per state, the sequence high-water
mark, and the drain lock holder. With a batch, order, or refund id, prints
that entity's sync state.

Examples:
  tillsync status
  tillsync status 0190a0b1-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runEntityStatus(opts, args[0], cmd)
			}
			return runStatus(opts, cmd)
		},
	}

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := eng.Status(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read status", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(st)
	}

	w := cmd.OutOrStdout()
	for _, state := range []pos.CommandState{
		pos.CommandPending, pos.CommandRunning, pos.CommandDone, pos.CommandFailed,
	} {
		fmt.Fprintf(w, "%-8s %d\n", state, st.Commands[state])
	}
	fmt.Fprintf(w, "last seq %d\n", st.LastSeq)
	if st.LockHolder != "" {
		fmt.Fprintf(w, "lock held by %s since %s\n", st.LockHolder, st.LockedAt.Format("15:04:05"))
	}
	return nil
}

func runEntityStatus(opts *StatusOptions, entityID string, cmd *cobra.Command) error {
	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := eng.SyncStatus(cmd.Context(), entityID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sync status", err)
	}
	if state == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity id %s", entityID))
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(map[string]string{"id": entityID, "sync_state": state})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entityID, state)
	return nil
}
