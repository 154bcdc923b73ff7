package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/pos"
)

// RefundOptions holds flags for the refund command.
type RefundOptions struct {
	*RootOptions
	Type   string
	Lines  []string
	Reason string
}

// NewRefundCommand creates the refund command.
func NewRefundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RefundOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "refund <order-id>",
		Short: "Record a full or partial refund against an order",
		Long: `Record a full or partial refund against an order.

FULL refunds the order's remaining refundable total. PARTIAL takes --line
index:quantity pairs and distributes the order-level discount and tax
proportionally. The amount is computed now, locally; the refund syncs after
its order does.

Examples:
  tillsync refund 0190a0b1-... --type FULL --reason "damaged goods"
  tillsync refund 0190a0b1-... --type PARTIAL --line 0:1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefund(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "FULL", "refund type (FULL|PARTIAL)")
	cmd.Flags().StringArrayVar(&opts.Lines, "line", nil, "returned quantity as line_index:qty (repeatable, PARTIAL only)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "refund reason")

	return cmd
}

func runRefund(opts *RefundOptions, orderID string, cmd *cobra.Command) error {
	req := pos.RefundRequest{
		Type:   pos.RefundType(strings.ToUpper(opts.Type)),
		Reason: opts.Reason,
	}
	if len(opts.Lines) > 0 {
		req.LineQuantities = make(map[int]int, len(opts.Lines))
		for _, r := range opts.Lines {
			parts := strings.Split(r, ":")
			if len(parts) != 2 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --line %q: want index:qty", r))
			}
			idx, err := strconv.Atoi(parts[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --line index", err)
			}
			qty, err := strconv.Atoi(parts[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --line quantity", err)
			}
			req.LineQuantities[idx] = qty
		}
	}

	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	ref, err := eng.CreateRefund(cmd.Context(), orderID, req)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create refund", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(ref)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Refund %s recorded for %s\n", ref.ID, FormatCents(ref.Amount))
	return nil
}
