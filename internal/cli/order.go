package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/ledger"
	"github.com/roach88/tillsync/internal/pos"
)

// OrderOptions holds flags for the order command.
type OrderOptions struct {
	*RootOptions
	Batch    string
	Lines    []string
	Discount int64
	Tax      int64
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Record a completed sale against an open batch",
		Long: `Record a completed sale against an open batch.

Lines are sku:quantity:unit_price_cents, repeatable. The order is recorded
locally and queued for sync behind the batch's open.

Example:
  tillsync order --batch 0190a0b1-... --line latte:2:450 --line muffin:1:300 --tax 110`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Batch, "batch", "", "batch id (required)")
	cmd.Flags().StringArrayVar(&opts.Lines, "line", nil, "order line as sku:qty:unit_price_cents (repeatable)")
	cmd.Flags().Int64Var(&opts.Discount, "discount", 0, "order-level discount in cents")
	cmd.Flags().Int64Var(&opts.Tax, "tax", 0, "tax in cents")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func runOrder(opts *OrderOptions, cmd *cobra.Command) error {
	lines, err := parseLines(opts.Lines)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --line", err)
	}

	eng, _, cleanup, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	o, err := eng.PlaceOrder(cmd.Context(), opts.Batch, ledger.OrderPayload{
		Lines:    lines,
		Discount: pos.Cents(opts.Discount),
		Tax:      pos.Cents(opts.Tax),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to place order", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if out.JSON() {
		return out.Success(o)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %s recorded, total %s\n", o.ID, FormatCents(o.Total))
	return nil
}

// parseLines parses sku:quantity:unit_price_cents triples.
func parseLines(raw []string) ([]pos.OrderLine, error) {
	var lines []pos.OrderLine
	for _, r := range raw {
		parts := strings.Split(r, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%q: want sku:qty:unit_price_cents", r)
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%q: quantity: %w", r, err)
		}
		price, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: unit price: %w", r, err)
		}
		lines = append(lines, pos.OrderLine{
			SKU:       parts[0],
			Name:      parts[0],
			Quantity:  qty,
			UnitPrice: pos.Cents(price),
		})
	}
	return lines, nil
}
