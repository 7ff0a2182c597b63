package brokerobs

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBroker answers the calls under test; the embedded nil interface panics on anything else.
type stubBroker struct {
	interfaces.Brokerage
	ask       decimal.Decimal
	positions []types.Position
}

func (s stubBroker) LatestAsk(context.Context, string) (decimal.Decimal, error) { return s.ask, nil }

func (s stubBroker) Positions(context.Context) ([]types.Position, error) { return s.positions, nil }

func captureLogs(t *testing.T, level string, detailed bool) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, logger.InitWithConfig(logger.LogConfig{Level: level, Format: "json", DetailedLogging: detailed, Output: buf}))
	t.Cleanup(func() { _ = logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "json"}) })
	return buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestLatestAskWarnsOnNonPositiveAsk(t *testing.T) {
	buf := captureLogs(t, "WARN", false)

	ask, err := Wrap(stubBroker{ask: decimal.Zero}).LatestAsk(context.Background(), "SPY")
	require.NoError(t, err)
	assert.True(t, ask.IsZero())

	got := logLines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0]["level"])
	assert.Equal(t, "Latest ask is not positive", got[0]["msg"])
	assert.Equal(t, "SPY", got[0]["symbol"])
}

func TestLatestAskPositiveStaysQuiet(t *testing.T) {
	buf := captureLogs(t, "WARN", false)

	_, err := Wrap(stubBroker{ask: decimal.NewFromInt(512)}).LatestAsk(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestPositionsDetailedLogListsHoldings(t *testing.T) {
	buf := captureLogs(t, "DEBUG", true)

	_, err := Wrap(stubBroker{positions: []types.Position{{Symbol: "SPY", Qty: decimal.NewFromInt(3)}}}).Positions(context.Background())
	require.NoError(t, err)

	var listed map[string]any
	for _, l := range logLines(t, buf) {
		if l["msg"] == "Positions listed" {
			listed = l
		}
	}
	require.NotNil(t, listed)
	assert.Equal(t, []any{"SPY=3"}, listed["positions"])
}
