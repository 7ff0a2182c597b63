package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"session-trader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(cycle string) Record {
	return Record{
		Key:         Key("SPY", "OPEN_TRAILING_BUY", "2026-10-16"),
		Instrument:  "SPY",
		Intent:      "OPEN_TRAILING_BUY",
		SessionDate: "2026-10-16",
		CycleID:     cycle,
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("spy", "CLOSE_ALL", "2026-10-16")
	b := Key("SPY", "CLOSE_ALL", "2026-10-16")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, Key("SPY", "CLOSE_ALL", "2026-10-19"))
	assert.NotEqual(t, a, Key("SPY", "OPEN_TRAILING_BUY", "2026-10-16"))
}

func TestReserveSuppressesSecondSubmission(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Reserve(ctx, record("c1")))
	err := s.Reserve(ctx, record("c2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDuplicate))

	require.NoError(t, s.Complete(ctx, record("").Key, "order-1"))
	err = s.Reserve(ctx, record("c3"))
	assert.True(t, errors.Is(err, types.ErrDuplicate))

	rec, ok, err := s.Get(ctx, record("").Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.Equal(t, "order-1", rec.OrderID)
	assert.Equal(t, "c1", rec.CycleID)
}

func TestReserveAfterFailureIsAllowed(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Reserve(ctx, record("c1")))
	require.NoError(t, s.Fail(ctx, record("").Key, errors.New("insufficient buying power")))

	rec, ok, err := s.Get(ctx, record("").Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "insufficient buying power", rec.Error)

	require.NoError(t, s.Reserve(ctx, record("c2")))
	rec, _, err = s.Get(ctx, record("").Key)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "c2", rec.CycleID)
	assert.Empty(t, rec.Error)
}

func TestUpdateUnknownKey(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Complete(context.Background(), "missing", "x"))
}

func TestRecentAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Reserve(context.Background(), record("c1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	recs, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "SPY", recs[0].Instrument)

	err = s.Reserve(context.Background(), record("c2"))
	assert.True(t, errors.Is(err, types.ErrDuplicate), "pending state must survive a restart")
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
