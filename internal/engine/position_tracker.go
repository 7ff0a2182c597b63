package engine

import (
	"context"
	"strings"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

// positionTracker reads the account's holding in one instrument.
type positionTracker struct {
	broker  interfaces.Brokerage
	timeout time.Duration
}

func newPositionTracker(broker interfaces.Brokerage, timeout time.Duration) *positionTracker {
	return &positionTracker{broker: broker, timeout: timeout}
}

// Position never fails: a lookup error yields an Unknown snapshot.
func (pt *positionTracker) Position(ctx context.Context, instrument string) types.PositionSnapshot {
	cctx, cancel := context.WithTimeout(ctx, pt.timeout)
	defer cancel()

	positions, err := pt.broker.Positions(cctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Cannot read positions", err, "symbol", instrument)
		return types.UnknownPosition(instrument)
	}

	qty := decimal.Zero
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, instrument) {
			qty = qty.Add(p.Qty)
		}
	}
	return types.PositionSnapshot{
		Instrument: instrument,
		Quantity:   qty,
		Present:    !qty.IsZero(),
		Known:      true,
	}
}
