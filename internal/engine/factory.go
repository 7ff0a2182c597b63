package engine

import (
	"session-trader/internal/interfaces"
	"session-trader/internal/metrics"
	"session-trader/internal/store"
	"session-trader/internal/tradelog"
)

// Deps are the optional collaborators of an Engine. A nil Journal disables
// duplicate suppression; a nil Trades disables the file trade log.
type Deps struct {
	Journal interfaces.ActionJournal
	Trades  *tradelog.Writer
	Metrics *metrics.Registry
}

func New(cfg *store.Config, brk interfaces.Brokerage, deps Deps) (interfaces.Engine, error) {
	return newEngine(cfg, brk, deps)
}
