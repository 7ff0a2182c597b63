package engineobs

import (
	"context"
	"errors"
	"testing"

	"session-trader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	res *types.CycleResult
	err error
}

func (s stubEngine) Step(context.Context) (*types.CycleResult, error) { return s.res, s.err }

func TestWrapPassesResultThrough(t *testing.T) {
	want := &types.CycleResult{CycleID: "c1", Instrument: "SPY", Decision: types.Decision{State: types.StateMidSession}}
	got, err := Wrap(stubEngine{res: want}).Step(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestWrapKeepsResultOnError(t *testing.T) {
	want := &types.CycleResult{CycleID: "c1", Decision: types.Decision{State: types.StateCycleAborted}}
	cause := types.Unavailable("session.clock", errors.New("timeout"))

	got, err := Wrap(stubEngine{res: want, err: cause}).Step(context.Background())
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Same(t, want, got)

	_, err = Wrap(stubEngine{err: cause}).Step(context.Background())
	assert.Error(t, err)
}
