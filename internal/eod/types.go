package eod

import "github.com/shopspring/decimal"

// tradeLine is one order line of the daily trade log.
type tradeLine struct {
	Time, CycleID, Symbol, Intent, OrderID, Status, Reason string
	Qty                                                    string
}

// decisionLine is one line of the daily decision log.
type decisionLine struct {
	Time, CycleID, Symbol, State, Action, Reason string
}

// aggRow aggregates one instrument's activity for the day.
type aggRow struct {
	Symbol         string
	Cycles         int
	NearOpen       int
	NearClose      int
	Withheld       int
	BuysSubmitted  int
	BuyQty         decimal.Decimal
	ClosesDone     int
	LastOrderID    string
	FirstDecision  string
	LastDecision   string
	WithheldByCode map[string]int
}
