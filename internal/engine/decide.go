package engine

import (
	"math"
	"time"

	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

// DecideParams is the fixed per-process input of Decide.
type DecideParams struct {
	Instrument   string
	Buffer       time.Duration
	Quantity     decimal.Decimal
	TrailPercent decimal.Decimal
}

// Decide evaluates one snapshot of session, position and quote.
// It is pure: the same inputs always give the same decision.
func Decide(w types.SessionWindow, pos types.PositionSnapshot, quote types.QuoteSnapshot, p DecideParams) types.Decision {
	if !w.IsOpen {
		return types.Decision{
			State:            types.StateMarketClosed,
			Intent:           types.NoIntent(),
			Reason:           types.ReasonMarketClosed,
			SecondsSinceOpen: -1,
		}
	}

	buffer := int64(p.Buffer / time.Second)
	toClose := roundSeconds(w.NextClose.Sub(w.Now))
	sinceOpen := int64(-1)
	if !w.SessionOpen.IsZero() {
		sinceOpen = roundSeconds(w.Now.Sub(w.SessionOpen))
	}
	nearClose := toClose < buffer
	nearOpen := sinceOpen >= 0 && sinceOpen < buffer

	d := types.Decision{
		State:            types.StateMidSession,
		Intent:           types.NoIntent(),
		Reason:           types.ReasonMidSession,
		SecondsToClose:   toClose,
		SecondsSinceOpen: sinceOpen,
	}

	switch {
	case nearClose && pos.Known && !pos.Present:
		d.State = types.StateNearClose
		d.Reason = types.ReasonNearCloseFlat
		d.Intent = types.OrderIntent{
			Kind:         types.IntentOpenTrailingBuy,
			Instrument:   p.Instrument,
			Quantity:     p.Quantity,
			TrailPercent: p.TrailPercent,
			AskPrice:     quote.AskPrice,
		}
	case nearOpen && pos.Known && pos.Present:
		d.State = types.StateNearOpen
		d.Reason = types.ReasonNearOpenHolding
		d.Intent = types.OrderIntent{
			Kind:       types.IntentCloseAll,
			Instrument: p.Instrument,
			Quantity:   pos.Quantity,
		}
	case (nearClose || nearOpen) && !pos.Known:
		d.Reason = types.ReasonPositionUnknown
	case nearClose:
		d.Reason = types.ReasonNearCloseHolding
	case nearOpen:
		d.Reason = types.ReasonNearOpenFlat
	}

	// The quote only gates. State and timing stay for the audit trail.
	if !quote.Available {
		d.Intent = types.NoIntent()
		d.Reason = types.ReasonQuoteUnavailable
	}
	return d
}

func roundSeconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
