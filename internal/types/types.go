package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the position of a cycle within the trading session.
type State string

const (
	StateMarketClosed State = "MarketClosed"
	StateNearOpen     State = "MarketOpen_NearOpen"
	StateNearClose    State = "MarketOpen_NearClose"
	StateMidSession   State = "MarketOpen_MidSession"
	StateCycleAborted State = "CycleAborted"
)

// IntentKind identifies which order action a cycle decided on.
type IntentKind string

const (
	IntentNone            IntentKind = "NONE"
	IntentOpenTrailingBuy IntentKind = "OPEN_TRAILING_BUY"
	IntentCloseAll        IntentKind = "CLOSE_ALL"
)

// Reason codes attached to every decision.
const (
	ReasonMarketClosed     = "market_closed"
	ReasonQuoteUnavailable = "quote_unavailable"
	ReasonPositionUnknown  = "position_unknown"
	ReasonNearCloseFlat    = "near_close_flat"
	ReasonNearOpenHolding  = "near_open_holding"
	ReasonNearCloseHolding = "near_close_holding"
	ReasonNearOpenFlat     = "near_open_flat"
	ReasonMidSession       = "mid_session"
	ReasonAccountBlocked   = "account_blocked"
	ReasonServiceDown      = "service_unavailable"
)

// Clock is the raw market clock reported by a brokerage.
type Clock struct {
	Timestamp   time.Time
	IsOpen      bool
	NextOpen    time.Time
	NextClose   time.Time
	SessionOpen time.Time // zero when the backend does not know it
}

// SessionWindow is the per-cycle view of session boundaries, all in one location.
type SessionWindow struct {
	IsOpen      bool      `json:"is_open"`
	Now         time.Time `json:"now"`
	SessionOpen time.Time `json:"session_open"`
	NextOpen    time.Time `json:"next_open"`
	NextClose   time.Time `json:"next_close"`
}

// Account is the subset of account health the bot cares about.
type Account struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TradingBlocked bool   `json:"trading_blocked"`
}

// Position is a raw holding as reported by a brokerage.
type Position struct {
	Symbol string
	Qty    decimal.Decimal
}

// PositionSnapshot is the cycle's view of the instrument's holding.
// Known == false means the lookup failed and the holding is unknown.
type PositionSnapshot struct {
	Instrument string          `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
	Present    bool            `json:"present"`
	Known      bool            `json:"known"`
}

// UnknownPosition returns a snapshot for a failed lookup.
func UnknownPosition(instrument string) PositionSnapshot {
	return PositionSnapshot{Instrument: instrument}
}

// QuoteSnapshot is the cycle's view of market data availability.
type QuoteSnapshot struct {
	Instrument string          `json:"instrument"`
	AskPrice   decimal.Decimal `json:"ask_price"`
	Available  bool            `json:"available"`
}

// UnavailableQuote returns a snapshot for a missing quote.
func UnavailableQuote(instrument string) QuoteSnapshot {
	return QuoteSnapshot{Instrument: instrument}
}

// OrderIntent is what the decision engine wants done this cycle. AskPrice is
// the ask the decision was made on.
type OrderIntent struct {
	Kind         IntentKind      `json:"kind"`
	Instrument   string          `json:"instrument,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	TrailPercent decimal.Decimal `json:"trail_percent"`
	AskPrice     decimal.Decimal `json:"ask_price"`
}

// NoIntent is the zero action.
func NoIntent() OrderIntent { return OrderIntent{Kind: IntentNone} }

// Decision is the output of one evaluation of the state machine.
type Decision struct {
	State            State       `json:"state"`
	Intent           OrderIntent `json:"intent"`
	Reason           string      `json:"reason"`
	SecondsToClose   int64       `json:"seconds_to_close"`
	SecondsSinceOpen int64       `json:"seconds_since_open"`
}

// TrailingStopOrder is the order request sent to a brokerage. ReferenceAsk is
// the cycle's quote; brokers without a native trailing stop price their
// trigger from it.
type TrailingStopOrder struct {
	Symbol        string
	Qty           decimal.Decimal
	TrailPercent  decimal.Decimal
	TimeInForce   string
	ExtendedHours bool
	ClientOrderID string
	ReferenceAsk  decimal.Decimal
}

// OpenOrder is a resting order for an instrument.
type OpenOrder struct {
	ID     string
	Symbol string
	Status string
}

type OrderHandle struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Status        string `json:"status"`
}

type CloseAck struct {
	Instrument      string `json:"instrument"`
	CancelledOrders int    `json:"cancelled_orders"`
	CloseOrderID    string `json:"close_order_id,omitempty"`
}

// CycleResult is printed once per cycle.
type CycleResult struct {
	CycleID    string        `json:"cycle_id"`
	Instrument string        `json:"instrument"`
	Decision   Decision      `json:"decision"`
	Handle     *OrderHandle  `json:"handle,omitempty"`
	Ack        *CloseAck     `json:"ack,omitempty"`
	Suppressed bool          `json:"suppressed,omitempty"`
	Err        string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}
