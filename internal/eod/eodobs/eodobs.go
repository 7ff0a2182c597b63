package eodobs

import (
	"context"
	"time"

	"session-trader/internal/interfaces"
	"session-trader/internal/logger"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{summarizer: summarizer}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	date := t.Format("2006-01-02")
	op := logger.StartOperation(context.Background(), "eod.SummarizeDay", "date", date)
	csvPath, err := oes.summarizer.SummarizeDay(t)
	if err != nil {
		op.EndWithError(err)
		return "", err
	}
	op.End("csv_path", csvPath)
	report(op.Context(), date, csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	op := logger.StartOperation(context.Background(), "eod.SummarizeToday")
	csvPath, err := oes.summarizer.SummarizeToday()
	if err != nil {
		op.EndWithError(err)
		return "", err
	}
	op.End("csv_path", csvPath)
	report(op.Context(), "today", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow() (bool, string) {
	shouldRun, csvPath := oes.summarizer.ShouldRunNow()
	logger.DebugSkip(context.Background(), 1, "Session summary check",
		"should_run", shouldRun,
		"csv_path", csvPath,
	)
	return shouldRun, csvPath
}

func report(ctx context.Context, date, csvPath string) {
	if csvPath == "" {
		logger.InfoSkip(ctx, 2, "No activity logged for session summary", "date", date)
		return
	}
	logger.InfoSkip(ctx, 2, "Session summary written", "date", date, "csv_path", csvPath)
}
