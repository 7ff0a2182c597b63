package engine

import (
	"context"
	"strings"

	"session-trader/internal/logger"
	"session-trader/internal/types"
)

// riskManager decides whether the account may trade at all this cycle.
type riskManager struct{}

func newRiskManager() *riskManager {
	return &riskManager{}
}

// validateAccount checks account health before any decision is acted on.
//
// Returns:
//   - blocked: true if the broker reports the account cannot trade
func (rm *riskManager) validateAccount(ctx context.Context, symbol string, acct types.Account) (blocked bool) {
	status := strings.ToUpper(acct.Status)
	blocked = acct.TradingBlocked || (status != "" && status != "ACTIVE")

	if blocked {
		logger.Risk(ctx, symbol, "ACCOUNT_BLOCKED",
			"account_id", acct.ID,
			"status", acct.Status,
			"trading_blocked", acct.TradingBlocked,
		)
	}
	return blocked
}
