package interfaces

import "time"

// EodSummarizer turns a day's decision and trade logs into a CSV report.
type EodSummarizer interface {
	SummarizeDay(t time.Time) (csvPath string, err error)
	SummarizeToday() (csvPath string, err error)
	ShouldRunNow() (shouldRun bool, csvPath string)
}
