package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	ArchiveOlderThan time.Duration
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one drain pass against the backend now",
		Long: `Run one drain pass against the backend now.

Dispatches every eligible queued command in order. Exits 1 if any command
ended terminally FAILED this pass; those need operator attention.

Example:
  tillsync sync
  tillsync sync --archive-older-than 720h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.ArchiveOlderThan, "archive-older-than", 0,
		"also archive DONE commands older than this (0 disables)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := eng.SyncNow(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	if opts.ArchiveOlderThan > 0 {
		moved, err := eng.Archive(cmd.Context(), time.Now().Add(-opts.ArchiveOlderThan))
		if err != nil {
			return WrapExitError(ExitCommandError, "archive failed", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "archived %d commands\n", moved)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		if err := out.Success(stats); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if stats.Skipped {
			fmt.Fprintln(w, "Skipped: another process is draining")
		} else {
			fmt.Fprintf(w, "Dispatched %d, retried %d, failed %d\n",
				stats.Dispatched, stats.Retried, stats.Failed)
			for _, f := range stats.Failures {
				fmt.Fprintf(w, "  FAILED seq=%d %s %s: %s\n", f.Seq, f.CmdType, f.EntityID, f.Message)
			}
		}
	}

	if stats.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d commands failed terminally", stats.Failed))
	}
	return nil
}
