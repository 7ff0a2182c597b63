package engine

import (
	"context"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/types"
)

// sessionClock turns the brokerage clock into a SessionWindow in one location.
type sessionClock struct {
	broker  interfaces.Brokerage
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

func newSessionClock(broker interfaces.Brokerage, loc *time.Location, timeout time.Duration) *sessionClock {
	return &sessionClock{broker: broker, loc: loc, timeout: timeout, now: time.Now}
}

func (c *sessionClock) Window(ctx context.Context) (types.SessionWindow, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	clk, err := c.broker.Clock(cctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Cannot read market clock", err)
		return types.SessionWindow{}, types.Unavailable("session.clock", err)
	}

	now := clk.Timestamp
	if now.IsZero() {
		now = c.now()
	}
	w := types.SessionWindow{
		IsOpen:      clk.IsOpen,
		Now:         now.In(c.loc),
		SessionOpen: clk.SessionOpen,
		NextOpen:    clk.NextOpen.In(c.loc),
		NextClose:   clk.NextClose.In(c.loc),
	}

	// The next open is tomorrow's; elapsed time must be measured from today's.
	if w.IsOpen && w.SessionOpen.IsZero() {
		open, err := c.broker.SessionOpen(cctx, w.Now)
		if err != nil {
			logger.ErrorWithErr(ctx, "Cannot resolve current session open", err)
			return types.SessionWindow{}, types.Unavailable("session.open", err)
		}
		w.SessionOpen = open
	}
	if !w.SessionOpen.IsZero() {
		w.SessionOpen = w.SessionOpen.In(c.loc)
	}
	return w, nil
}
