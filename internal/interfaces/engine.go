package interfaces

import (
	"context"

	"session-trader/internal/types"
)

type Engine interface {
	Step(ctx context.Context) (*types.CycleResult, error)
}
