package interfaces

import (
	"context"
	"time"

	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

// Brokerage is the raw account, clock, market-data and order service.
// Implementations return plain errors; the engine adapters classify them.
type Brokerage interface {
	// AccountStatus reports account health.
	AccountStatus(ctx context.Context) (types.Account, error)

	// Clock reports whether the market is open and the next boundaries.
	Clock(ctx context.Context) (types.Clock, error)

	// SessionOpen returns the open of the session trading on day.
	SessionOpen(ctx context.Context, day time.Time) (time.Time, error)

	// Positions lists every open position of the account.
	Positions(ctx context.Context) ([]types.Position, error)

	// LatestAsk returns the most recent ask price for symbol.
	LatestAsk(ctx context.Context, symbol string) (decimal.Decimal, error)

	// SubmitTrailingStopBuy places a trailing-stop buy order.
	SubmitTrailingStopBuy(ctx context.Context, req types.TrailingStopOrder) (types.OrderHandle, error)

	// OpenOrders lists resting orders for symbol.
	OpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error)

	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, orderID string) error

	// ClosePosition liquidates the whole position in symbol.
	ClosePosition(ctx context.Context, symbol string) (types.OrderHandle, error)
}
