package engineobs

import (
	"context"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/trace"
	"session-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading cycle")

	result, err := oe.engine.Step(ctx)
	if err != nil {
		fields := []any{"duration_ms", time.Since(start).Milliseconds()}
		if result != nil {
			fields = append(fields, "cycle_id", result.CycleID, "symbol", result.Instrument, "state", string(result.Decision.State))
		}
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err, fields...)
		return result, err
	}

	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"cycle_id", result.CycleID,
		"symbol", result.Instrument,
		"state", string(result.Decision.State),
		"action", string(result.Decision.Intent.Kind),
		"reason", result.Decision.Reason,
		"suppressed", result.Suppressed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
