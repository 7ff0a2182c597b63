package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"session-trader/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTrailingBuyAppliesDefaults(t *testing.T) {
	brk := &fakeBroker{}
	oe := newOrderExecutor(brk, nil, time.Second)

	h, err := oe.openTrailingBuy(context.Background(), "c1", types.OrderIntent{
		Kind:       types.IntentOpenTrailingBuy,
		Instrument: "SPY",
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "buy-1", h.OrderID)

	require.Len(t, brk.submitted, 1)
	assert.True(t, brk.submitted[0].Qty.Equal(decimal.NewFromInt(1)))
	assert.True(t, brk.submitted[0].TrailPercent.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "key-1", brk.submitted[0].ClientOrderID)
}

func TestOpenTrailingBuyPassesDecisionAsk(t *testing.T) {
	brk := &fakeBroker{}
	oe := newOrderExecutor(brk, nil, time.Second)

	_, err := oe.openTrailingBuy(context.Background(), "c1", types.OrderIntent{
		Kind:       types.IntentOpenTrailingBuy,
		Instrument: "SPY",
		AskPrice:   decimal.RequireFromString("512.25"),
	}, "key-1")
	require.NoError(t, err)
	require.Len(t, brk.submitted, 1)
	assert.Equal(t, "512.25", brk.submitted[0].ReferenceAsk.String())
}

func TestOpenTrailingBuyWrapsRejection(t *testing.T) {
	cause := errors.New("422 qty must be > 0")
	oe := newOrderExecutor(&fakeBroker{submitErr: cause}, nil, time.Second)

	_, err := oe.openTrailingBuy(context.Background(), "c1", types.OrderIntent{Instrument: "SPY"}, "key-1")
	assert.ErrorIs(t, err, types.ErrSubmission)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, types.KindSubmission, types.KindOf(err))
}

func TestCloseAllListFailureStillClosesAndFails(t *testing.T) {
	brk := &fakeBroker{openOrdersErr: errors.New("orders endpoint down")}
	oe := newOrderExecutor(brk, nil, time.Second)

	ack, err := oe.closeAllAndCancelOrders(context.Background(), "c1", "SPY", "key-2")
	assert.ErrorIs(t, err, types.ErrSubmission)
	assert.Equal(t, []string{"SPY"}, brk.closed)
	assert.Equal(t, "close-1", ack.CloseOrderID)
}

func TestCloseAllCloseFailure(t *testing.T) {
	brk := &fakeBroker{
		openOrders: []types.OpenOrder{{ID: "o1", Symbol: "SPY"}},
		closeErr:   errors.New("position not found"),
	}
	oe := newOrderExecutor(brk, nil, time.Second)

	ack, err := oe.closeAllAndCancelOrders(context.Background(), "c1", "SPY", "key-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close position")
	assert.Equal(t, 1, ack.CancelledOrders)
	assert.Empty(t, ack.CloseOrderID)
}

func TestCloseAllNoRestingOrders(t *testing.T) {
	brk := &fakeBroker{}
	oe := newOrderExecutor(brk, nil, time.Second)

	ack, err := oe.closeAllAndCancelOrders(context.Background(), "c1", "SPY", "key-2")
	require.NoError(t, err)
	assert.Equal(t, 0, ack.CancelledOrders)
	assert.Equal(t, "close-1", ack.CloseOrderID)
}
