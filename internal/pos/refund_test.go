package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoLineOrder returns an order with two lines, an order-level discount,
// and tax, used across the refund math tests.
//
//	line 0: 2 x 1000 = 2000
//	line 1: 1 x 3000 = 3000
//	gross 5000, discount 500, tax 450, total 4950
func twoLineOrder() Order {
	return Order{
		ID: "order-1",
		Lines: []OrderLine{
			{SKU: "espresso", Quantity: 2, UnitPrice: 1000},
			{SKU: "beans-1kg", Quantity: 1, UnitPrice: 3000},
		},
		Subtotal: 5000,
		Discount: 500,
		Tax:      450,
		Total:    4950,
	}
}

func TestComputeRefundAmount_Full(t *testing.T) {
	amount, err := ComputeRefundAmount(twoLineOrder(), 0, RefundRequest{Type: RefundFull})
	require.NoError(t, err)
	assert.Equal(t, Cents(4950), amount)
}

func TestComputeRefundAmount_FullAfterPartial(t *testing.T) {
	// A full refund after a prior partial refund returns only the remainder.
	amount, err := ComputeRefundAmount(twoLineOrder(), 1000, RefundRequest{Type: RefundFull})
	require.NoError(t, err)
	assert.Equal(t, Cents(3950), amount)
}

func TestComputeRefundAmount_FullyRefunded(t *testing.T) {
	_, err := ComputeRefundAmount(twoLineOrder(), 4950, RefundRequest{Type: RefundFull})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fully refunded")
}

func TestComputeRefundAmount_PartialProportional(t *testing.T) {
	// Return one espresso: gross 1000 of 5000 = 1/5 of the order.
	// discount share = 500/5 = 100, tax share = 450/5 = 90.
	amount, err := ComputeRefundAmount(twoLineOrder(), 0, RefundRequest{
		Type:           RefundPartial,
		LineQuantities: map[int]int{0: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Cents(1000-100+90), amount)
}

func TestComputeRefundAmount_PartialWholeOrder(t *testing.T) {
	// Returning every unit reproduces the order total exactly.
	amount, err := ComputeRefundAmount(twoLineOrder(), 0, RefundRequest{
		Type:           RefundPartial,
		LineQuantities: map[int]int{0: 2, 1: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Cents(4950), amount)
}

func TestComputeRefundAmount_PartialTruncation(t *testing.T) {
	// Shares that do not divide evenly truncate toward zero, so the
	// computed amount never exceeds the exact proportional value.
	o := Order{
		ID: "order-2",
		Lines: []OrderLine{
			{SKU: "a", Quantity: 3, UnitPrice: 333},
		},
		Subtotal: 999,
		Discount: 100,
		Tax:      80,
		Total:    979,
	}
	amount, err := ComputeRefundAmount(o, 0, RefundRequest{
		Type:           RefundPartial,
		LineQuantities: map[int]int{0: 1},
	})
	require.NoError(t, err)
	// gross 333, discount share 100*333/999 = 33, tax share 80*333/999 = 26
	assert.Equal(t, Cents(333-33+26), amount)
}

func TestComputeRefundAmount_PartialErrors(t *testing.T) {
	o := twoLineOrder()

	cases := []struct {
		name string
		req  RefundRequest
	}{
		{"no lines", RefundRequest{Type: RefundPartial}},
		{"index out of range", RefundRequest{Type: RefundPartial, LineQuantities: map[int]int{5: 1}}},
		{"negative index", RefundRequest{Type: RefundPartial, LineQuantities: map[int]int{-1: 1}}},
		{"zero quantity", RefundRequest{Type: RefundPartial, LineQuantities: map[int]int{0: 0}}},
		{"over quantity", RefundRequest{Type: RefundPartial, LineQuantities: map[int]int{0: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeRefundAmount(o, 0, tc.req)
			assert.Error(t, err)
		})
	}
}

func TestComputeRefundAmount_PartialExceedsRemaining(t *testing.T) {
	// 4000 already refunded leaves 950; returning the 3000 line is too much.
	_, err := ComputeRefundAmount(twoLineOrder(), 4000, RefundRequest{
		Type:           RefundPartial,
		LineQuantities: map[int]int{1: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds remaining")
}

func TestComputeRefundAmount_UnknownType(t *testing.T) {
	_, err := ComputeRefundAmount(twoLineOrder(), 0, RefundRequest{Type: "STORE_CREDIT"})
	assert.Error(t, err)
}

func TestCommandType_Class(t *testing.T) {
	assert.Equal(t, ClassBatch, CmdOpenBatch.Class())
	assert.Equal(t, ClassBatch, CmdCloseBatch.Class())
	assert.Equal(t, ClassRecord, CmdCreateOrder.Class())
	assert.Equal(t, ClassRecord, CmdCreateRefund.Class())
}
