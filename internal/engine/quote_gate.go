package engine

import (
	"context"
	"errors"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/types"
)

// quoteGate checks that market data for the instrument is flowing.
type quoteGate struct {
	broker  interfaces.Brokerage
	timeout time.Duration
}

func newQuoteGate(broker interfaces.Brokerage, timeout time.Duration) *quoteGate {
	return &quoteGate{broker: broker, timeout: timeout}
}

func (q *quoteGate) LastAsk(ctx context.Context, instrument string) types.QuoteSnapshot {
	cctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	ask, err := q.broker.LatestAsk(cctx, instrument)
	if err == nil && !ask.IsPositive() {
		err = errors.New("non-positive ask " + ask.String())
	}
	if err != nil {
		logger.Warn(ctx, "Cannot get the last delayed price", "symbol", instrument, "error", err)
		return types.UnavailableQuote(instrument)
	}
	return types.QuoteSnapshot{Instrument: instrument, AskPrice: ask, Available: true}
}
