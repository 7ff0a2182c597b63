package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level string, detailed bool) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, InitWithConfig(LogConfig{Level: level, Format: "json", DetailedLogging: detailed, Output: buf}))
	return buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
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

func TestDecisionIsStructured(t *testing.T) {
	buf := capture(t, "INFO", false)
	Decision(context.Background(), "SPY", "MarketOpen_NearClose", "OPEN_TRAILING_BUY", "near_close_flat", "cycle_id", "c1")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "DECISION", got[0]["type"])
	assert.Equal(t, "SPY", got[0]["symbol"])
	assert.Equal(t, "OPEN_TRAILING_BUY", got[0]["action"])
	assert.Equal(t, "c1", got[0]["cycle_id"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "WARN", false)
	Info(context.Background(), "hidden")
	Debug(context.Background(), "hidden too")
	ErrorWithErr(context.Background(), "shown", errors.New("boom"))

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["msg"])
	assert.Equal(t, "boom", got[0]["error"])
}

func TestDetailedAddsSource(t *testing.T) {
	buf := capture(t, "INFO", true)
	Debug(context.Background(), "with source")

	got := lines(t, buf)
	require.Len(t, got, 1)
	src, ok := got[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, src["file"], "logger_test.go")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "ERROR", parseLogLevel("ERROR").String())
	assert.Equal(t, "INFO", parseLogLevel("verbose").String())
}

func TestIsDebugEnabledFollowsDetailed(t *testing.T) {
	capture(t, "INFO", true)
	assert.True(t, IsDebugEnabled())
	capture(t, "INFO", false)
	assert.False(t, IsDebugEnabled())
}

func TestWarnSkip(t *testing.T) {
	buf := capture(t, "WARN", false)
	WarnSkip(context.Background(), 0, "degraded", "symbol", "SPY")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0]["level"])
	assert.Equal(t, "SPY", got[0]["symbol"])
}
