package eod

import (
	"time"

	"session-trader/internal/interfaces"
)

// NewSummarizer reads the logs the tradelog writer keeps under dir.
func NewSummarizer(dir string, loc *time.Location) interfaces.EodSummarizer {
	if dir == "" {
		dir = "logs"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &eodSummarizer{dir: dir, loc: loc, now: time.Now}
}
