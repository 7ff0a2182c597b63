package engine

import (
	"context"
	"errors"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/journal"
	"session-trader/internal/logger"
	"session-trader/internal/metrics"
	"session-trader/internal/store"
	"session-trader/internal/tradelog"
	"session-trader/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Engine struct {
	params  DecideParams
	loc     *time.Location
	timeout time.Duration

	brk       interfaces.Brokerage
	clock     *sessionClock
	positions *positionTracker
	quotes    *quoteGate
	exec      *orderExecutor
	risk      *riskManager

	journal interfaces.ActionJournal
	trades  *tradelog.Writer
	metrics *metrics.Registry

	now   func() time.Time
	newID func() string
}

func newEngine(cfg *store.Config, brk interfaces.Brokerage, deps Deps) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout()
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		params: DecideParams{
			Instrument:   cfg.Symbol,
			Buffer:       cfg.TimeBuffer(),
			Quantity:     cfg.Quantity,
			TrailPercent: cfg.TrailPercent,
		},
		loc:       loc,
		timeout:   timeout,
		brk:       brk,
		clock:     newSessionClock(brk, loc, timeout),
		positions: newPositionTracker(brk, timeout),
		quotes:    newQuoteGate(brk, timeout),
		exec:      newOrderExecutor(brk, deps.Trades, timeout),
		risk:      newRiskManager(),
		journal:   deps.Journal,
		trades:    deps.Trades,
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Step runs one read-decide-act cycle for the configured instrument.
func (e *Engine) Step(ctx context.Context) (*types.CycleResult, error) {
	started := e.now()
	res := &types.CycleResult{
		CycleID:    e.newID(),
		Instrument: e.params.Instrument,
		StartedAt:  started,
	}
	defer func() {
		res.Duration = e.now().Sub(started)
		e.metrics.LastCycle.SetToCurrentTime()
	}()
	symbol := e.params.Instrument

	var (
		acct   types.Account
		window types.SessionWindow
		pos    types.PositionSnapshot
		quote  types.QuoteSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, e.timeout)
		defer cancel()
		a, err := e.brk.AccountStatus(cctx)
		if err != nil {
			return types.Unavailable("account.status", err)
		}
		acct = a
		return nil
	})
	g.Go(func() error {
		w, err := e.clock.Window(gctx)
		if err != nil {
			return err
		}
		window = w
		return nil
	})
	g.Go(func() error {
		pos = e.positions.Position(gctx, symbol)
		return nil
	})
	g.Go(func() error {
		quote = e.quotes.LastAsk(gctx, symbol)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.ErrorWithErr(ctx, "Cycle aborted", err, "symbol", symbol, "cycle_id", res.CycleID)
		e.abort(ctx, res, types.ReasonServiceDown, err)
		return res, err
	}

	if e.risk.validateAccount(ctx, symbol, acct) {
		e.abort(ctx, res, types.ReasonAccountBlocked, nil)
		return res, nil
	}

	d := Decide(window, pos, quote, e.params)
	res.Decision = d
	e.logDecision(ctx, res.CycleID, window, pos, quote, d)

	if d.Intent.Kind == types.IntentNone {
		return res, nil
	}
	if err := e.act(ctx, res, window); err != nil {
		res.Err = err.Error()
		return res, err
	}
	return res, nil
}

func (e *Engine) abort(ctx context.Context, res *types.CycleResult, reason string, err error) {
	res.Decision = types.Decision{
		State:            types.StateCycleAborted,
		Intent:           types.NoIntent(),
		Reason:           reason,
		SecondsSinceOpen: -1,
	}
	if err != nil {
		res.Err = err.Error()
	}
	e.metrics.Cycles.WithLabelValues(string(types.StateCycleAborted), string(types.IntentNone)).Inc()
	e.metrics.Suppressed.WithLabelValues(reason).Inc()
	logger.Decision(ctx, e.params.Instrument, string(types.StateCycleAborted), string(types.IntentNone), reason,
		"cycle_id", res.CycleID)
	e.appendDecision(ctx, tradelog.DecisionEntry{
		CycleID:          res.CycleID,
		Symbol:           e.params.Instrument,
		State:            string(types.StateCycleAborted),
		Action:           string(types.IntentNone),
		Reason:           reason,
		SecondsSinceOpen: -1,
	})
}

func (e *Engine) logDecision(ctx context.Context, cycleID string, w types.SessionWindow, pos types.PositionSnapshot, quote types.QuoteSnapshot, d types.Decision) {
	symbol := e.params.Instrument
	if d.State == types.StateMarketClosed {
		logger.Info(ctx, "Market not open",
			"symbol", symbol,
			"next_open", w.NextOpen,
			"opens_in_seconds", roundSeconds(w.NextOpen.Sub(w.Now)),
		)
	}

	logger.Decision(ctx, symbol, string(d.State), string(d.Intent.Kind), d.Reason,
		"cycle_id", cycleID,
		"seconds_to_close", d.SecondsToClose,
		"seconds_since_open", d.SecondsSinceOpen,
		"position_known", pos.Known,
		"position_present", pos.Present,
		"quote_available", quote.Available,
	)
	e.metrics.Cycles.WithLabelValues(string(d.State), string(d.Intent.Kind)).Inc()
	if d.Reason == types.ReasonQuoteUnavailable || d.Reason == types.ReasonPositionUnknown {
		e.metrics.Suppressed.WithLabelValues(d.Reason).Inc()
	}

	e.appendDecision(ctx, tradelog.DecisionEntry{
		CycleID:          cycleID,
		Symbol:           symbol,
		State:            string(d.State),
		Action:           string(d.Intent.Kind),
		Reason:           d.Reason,
		SecondsToClose:   d.SecondsToClose,
		SecondsSinceOpen: d.SecondsSinceOpen,
		PositionKnown:    pos.Known,
		PositionPresent:  pos.Present,
		QuoteOK:          quote.Available,
		PositionQty:      pos.Quantity.String(),
		Ask:              quote.AskPrice.String(),
	})
}

func (e *Engine) appendDecision(ctx context.Context, entry tradelog.DecisionEntry) {
	if e.trades == nil {
		return
	}
	if err := e.trades.AppendDecision(entry); err != nil {
		logger.Warn(ctx, "Failed to append decision log", "error", err, "symbol", entry.Symbol)
	}
}

// act reserves the intent in the journal, submits it and records the outcome.
func (e *Engine) act(ctx context.Context, res *types.CycleResult, w types.SessionWindow) error {
	intent := res.Decision.Intent
	kind := string(intent.Kind)
	sessionDate := w.Now.In(e.loc).Format("2006-01-02")
	key := journal.Key(intent.Instrument, kind, sessionDate)

	if e.journal != nil {
		err := e.journal.Reserve(ctx, journal.Record{
			Key:         key,
			Instrument:  intent.Instrument,
			Intent:      kind,
			SessionDate: sessionDate,
			CycleID:     res.CycleID,
		})
		if errors.Is(err, types.ErrDuplicate) {
			res.Suppressed = true
			e.metrics.Suppressed.WithLabelValues("duplicate").Inc()
			logger.Risk(ctx, intent.Instrument, "DUPLICATE_SUPPRESSED",
				"intent", kind,
				"session_date", sessionDate,
				"key", key,
			)
			return nil
		}
		if err != nil {
			e.metrics.Suppressed.WithLabelValues("journal_unavailable").Inc()
			logger.ErrorWithErr(ctx, "Cannot reserve action in journal", err, "symbol", intent.Instrument, "key", key)
			return types.Unavailable("journal.reserve", err)
		}
	}

	var (
		orderID string
		err     error
	)
	switch intent.Kind {
	case types.IntentOpenTrailingBuy:
		var h types.OrderHandle
		h, err = e.exec.openTrailingBuy(ctx, res.CycleID, intent, key)
		if err == nil {
			res.Handle = &h
			orderID = h.OrderID
		}
	case types.IntentCloseAll:
		var ack types.CloseAck
		ack, err = e.exec.closeAllAndCancelOrders(ctx, res.CycleID, intent.Instrument, key)
		res.Ack = &ack
		orderID = ack.CloseOrderID
	}

	// recorded even when the cycle was cancelled mid-submission
	jctx := context.WithoutCancel(ctx)
	if err != nil {
		e.metrics.Orders.WithLabelValues(kind, "rejected").Inc()
		logger.ErrorWithErr(ctx, "Order submission failed", err, "symbol", intent.Instrument, "intent", kind)
		if e.journal != nil {
			if jerr := e.journal.Fail(jctx, key, err); jerr != nil {
				logger.Warn(ctx, "Failed to mark journal entry failed", "error", jerr, "key", key)
			}
		}
		return err
	}

	e.metrics.Orders.WithLabelValues(kind, "submitted").Inc()
	if e.journal != nil {
		if jerr := e.journal.Complete(jctx, key, orderID); jerr != nil {
			logger.Warn(ctx, "Failed to mark journal entry submitted", "error", jerr, "key", key)
		}
	}
	logger.Trade(ctx, intent.Instrument, kind, intent.Quantity.String(), orderID,
		"cycle_id", res.CycleID,
		"key", key,
	)
	return nil
}
