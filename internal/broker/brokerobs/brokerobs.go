package brokerobs

import (
	"context"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/trace"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

// observableBroker wraps a Brokerage with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Brokerage
}

// Compile-time interface check
var _ interfaces.Brokerage = (*observableBroker)(nil)

// Wrap wraps a brokerage with observability middleware
func Wrap(broker interfaces.Brokerage) interfaces.Brokerage {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) AccountStatus(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AccountStatus")
	defer span.End()

	acct, err := ob.broker.AccountStatus(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.Account{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched", "status", acct.Status, "trading_blocked", acct.TradingBlocked)
	return acct, nil
}

func (ob *observableBroker) Clock(ctx context.Context) (types.Clock, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Clock")
	defer span.End()

	c, err := ob.broker.Clock(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch market clock", err)
		return types.Clock{}, err
	}

	logger.DebugSkip(ctx, 1, "Market clock fetched",
		"is_open", c.IsOpen,
		"next_open", c.NextOpen,
		"next_close", c.NextClose,
	)
	return c, nil
}

func (ob *observableBroker) SessionOpen(ctx context.Context, day time.Time) (time.Time, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SessionOpen")
	defer span.End()

	open, err := ob.broker.SessionOpen(ctx, day)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve session open", err, "day", day.Format("2006-01-02"))
		return time.Time{}, err
	}

	logger.DebugSkip(ctx, 1, "Session open resolved", "day", day.Format("2006-01-02"), "open", open)
	return open, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	ps, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list positions", err)
		return nil, err
	}

	fields := []any{"count", len(ps)}
	if logger.IsDebugEnabled() {
		held := make([]string, 0, len(ps))
		for _, p := range ps {
			held = append(held, p.Symbol+"="+p.Qty.String())
		}
		fields = append(fields, "positions", held)
	}
	logger.DebugSkip(ctx, 1, "Positions listed", fields...)
	return ps, nil
}

// LatestAsk returns the latest ask with observability
func (ob *observableBroker) LatestAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "broker.LatestAsk")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching latest ask", "symbol", symbol)

	ask, err := ob.broker.LatestAsk(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch latest ask", err, "symbol", symbol)
		return decimal.Zero, err
	}

	if !ask.IsPositive() {
		logger.WarnSkip(ctx, 1, "Latest ask is not positive", "symbol", symbol, "ask", ask.String())
		return ask, nil
	}
	logger.DebugSkip(ctx, 1, "Latest ask fetched", "symbol", symbol, "ask", ask.String())
	return ask, nil
}

// SubmitTrailingStopBuy places an order with observability
func (ob *observableBroker) SubmitTrailingStopBuy(ctx context.Context, req types.TrailingStopOrder) (types.OrderHandle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitTrailingStopBuy")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing trailing stop buy",
		"symbol", req.Symbol,
		"qty", req.Qty.String(),
		"trail_percent", req.TrailPercent.String(),
		"client_order_id", req.ClientOrderID,
	)

	h, err := ob.broker.SubmitTrailingStopBuy(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"qty", req.Qty.String(),
		)
		return types.OrderHandle{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", h.OrderID,
		"status", h.Status,
	)
	return h, nil
}

func (ob *observableBroker) OpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenOrders")
	defer span.End()

	os, err := ob.broker.OpenOrders(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list open orders", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Open orders listed", "symbol", symbol, "count", len(os))
	return os, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	if err := ob.broker.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}

	logger.InfoSkip(ctx, 1, "Order cancelled", "order_id", orderID)
	return nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string) (types.OrderHandle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", symbol)

	h, err := ob.broker.ClosePosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", symbol)
		return types.OrderHandle{}, err
	}

	logger.InfoSkip(ctx, 1, "Position close submitted", "symbol", symbol, "order_id", h.OrderID)
	return h, nil
}
