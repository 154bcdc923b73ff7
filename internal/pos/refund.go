package pos

import "fmt"

// RefundRequest describes a requested refund against an order.
//
// For PARTIAL refunds, LineQuantities maps a line index on the order to the
// quantity being returned from that line.
type RefundRequest struct {
	Type           RefundType  `json:"type"`
	LineQuantities map[int]int `json:"line_quantities,omitempty"`
	Reason         string      `json:"reason,omitempty"`
}

// ComputeRefundAmount returns the amount a refund request is worth against
// an order, given the total already refunded for that order.
//
// FULL refunds the remaining refundable total. PARTIAL sums the gross value
// of the returned quantities, then subtracts a proportional share of the
// order-level discount and adds a proportional share of the tax, both scaled
// by the returned gross over the order gross. Integer division truncates
// toward zero; the remainder stays with the merchant.
//
// The computation is pure. It runs at refund creation time, before anything
// is queued, and never as part of dispatch.
func ComputeRefundAmount(o Order, alreadyRefunded Cents, req RefundRequest) (Cents, error) {
	remaining := o.Total - alreadyRefunded
	if remaining <= 0 {
		return 0, fmt.Errorf("order %s is fully refunded", o.ID)
	}

	switch req.Type {
	case RefundFull:
		return remaining, nil

	case RefundPartial:
		if len(req.LineQuantities) == 0 {
			return 0, fmt.Errorf("partial refund requires at least one line quantity")
		}

		var orderGross, refundGross Cents
		for _, line := range o.Lines {
			orderGross += Cents(line.Quantity) * line.UnitPrice
		}
		if orderGross <= 0 {
			return 0, fmt.Errorf("order %s has no refundable lines", o.ID)
		}

		for idx, qty := range req.LineQuantities {
			if idx < 0 || idx >= len(o.Lines) {
				return 0, fmt.Errorf("line index %d out of range (order has %d lines)", idx, len(o.Lines))
			}
			line := o.Lines[idx]
			if qty <= 0 || qty > line.Quantity {
				return 0, fmt.Errorf("line %d: quantity %d not in 1..%d", idx, qty, line.Quantity)
			}
			refundGross += Cents(qty) * line.UnitPrice
		}

		discountShare := o.Discount * refundGross / orderGross
		taxShare := o.Tax * refundGross / orderGross
		amount := refundGross - discountShare + taxShare

		if amount > remaining {
			return 0, fmt.Errorf("refund amount %d exceeds remaining refundable %d", amount, remaining)
		}
		return amount, nil

	default:
		return 0, fmt.Errorf("unknown refund type %q", req.Type)
	}
}
