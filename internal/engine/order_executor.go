package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/tradelog"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

const (
	defaultQuantity     = 1
	defaultTrailPercent = 2
)

// orderExecutor turns intents into broker orders and records them in the trade log.
type orderExecutor struct {
	broker  interfaces.Brokerage
	trades  *tradelog.Writer
	timeout time.Duration
}

func newOrderExecutor(broker interfaces.Brokerage, trades *tradelog.Writer, timeout time.Duration) *orderExecutor {
	return &orderExecutor{broker: broker, trades: trades, timeout: timeout}
}

// openTrailingBuy submits a DAY trailing-stop buy. It does not re-check the position.
func (oe *orderExecutor) openTrailingBuy(ctx context.Context, cycleID string, intent types.OrderIntent, key string) (types.OrderHandle, error) {
	qty := intent.Quantity
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(defaultQuantity)
	}
	trail := intent.TrailPercent
	if !trail.IsPositive() {
		trail = decimal.NewFromInt(defaultTrailPercent)
	}

	req := types.TrailingStopOrder{
		Symbol:        intent.Instrument,
		Qty:           qty,
		TrailPercent:  trail,
		TimeInForce:   "DAY",
		ExtendedHours: false,
		ClientOrderID: key,
		ReferenceAsk:  intent.AskPrice,
	}

	cctx, cancel := context.WithTimeout(ctx, oe.timeout)
	defer cancel()
	h, err := oe.broker.SubmitTrailingStopBuy(cctx, req)
	if err != nil {
		return types.OrderHandle{}, types.Rejected("order.open_trailing_buy", err)
	}

	oe.record(ctx, tradelog.Entry{
		CycleID:      cycleID,
		Symbol:       intent.Instrument,
		Intent:       string(types.IntentOpenTrailingBuy),
		OrderID:      h.OrderID,
		Status:       h.Status,
		Reason:       types.ReasonNearCloseFlat,
		Qty:          qty.String(),
		TrailPercent: trail.String(),
	})
	return h, nil
}

// closeAllAndCancelOrders cancels every resting order for the instrument and
// then closes the position. Any failed step makes the whole call fail.
func (oe *orderExecutor) closeAllAndCancelOrders(ctx context.Context, cycleID, instrument, key string) (types.CloseAck, error) {
	ack := types.CloseAck{Instrument: instrument}
	var errs []error

	lctx, cancel := context.WithTimeout(ctx, oe.timeout)
	orders, err := oe.broker.OpenOrders(lctx, instrument)
	cancel()
	if err != nil {
		errs = append(errs, fmt.Errorf("list open orders: %w", err))
	}
	for _, o := range orders {
		cctx, cancel := context.WithTimeout(ctx, oe.timeout)
		err := oe.broker.CancelOrder(cctx, o.ID)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", o.ID, err))
			continue
		}
		ack.CancelledOrders++
	}

	pctx, cancel := context.WithTimeout(ctx, oe.timeout)
	h, err := oe.broker.ClosePosition(pctx, instrument)
	cancel()
	if err != nil {
		errs = append(errs, fmt.Errorf("close position: %w", err))
	} else {
		ack.CloseOrderID = h.OrderID
	}

	if len(errs) > 0 {
		logger.Error(ctx, "Close-all finished with failures",
			"symbol", instrument,
			"cancelled_orders", ack.CancelledOrders,
			"failures", len(errs),
		)
		return ack, types.Rejected("order.close_all", errors.Join(errs...))
	}

	oe.record(ctx, tradelog.Entry{
		CycleID: cycleID,
		Symbol:  instrument,
		Intent:  string(types.IntentCloseAll),
		OrderID: ack.CloseOrderID,
		Status:  h.Status,
		Reason:  types.ReasonNearOpenHolding,
		Extra:   map[string]any{"cancelled_orders": ack.CancelledOrders, "idempotency_key": key},
	})
	return ack, nil
}

func (oe *orderExecutor) record(ctx context.Context, e tradelog.Entry) {
	if oe.trades == nil {
		return
	}
	if err := oe.trades.Append(e); err != nil {
		logger.Warn(ctx, "Failed to append trade log", "error", err, "symbol", e.Symbol)
	}
}
