package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"session-trader/internal/types"

	"github.com/shopspring/decimal"
)

type eodSummarizer struct {
	dir string
	loc *time.Location
	now func() time.Time
}

func (s *eodSummarizer) tradeFile(t time.Time) string {
	return filepath.Join(s.dir, t.Format("2006-01-02")+".txt")
}

func (s *eodSummarizer) decisionFile(t time.Time) string {
	return filepath.Join(s.dir, "decisions", t.Format("2006-01-02")+".txt")
}

func (s *eodSummarizer) csvPath(t time.Time) string {
	return filepath.Join(s.dir, "eod", t.Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the day's decision and trade logs into one CSV row
// per instrument. It returns an empty path when nothing was logged that day.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	t = t.In(s.loc)
	aggs := map[string]*aggRow{}
	row := func(sym string) *aggRow {
		r := aggs[sym]
		if r == nil {
			r = &aggRow{Symbol: sym, WithheldByCode: map[string]int{}}
			aggs[sym] = r
		}
		return r
	}

	err := scanLines(s.decisionFile(t), func(b []byte) {
		var dl decisionLine
		if json.Unmarshal(b, &dl) != nil || dl.Symbol == "" {
			return
		}
		r := row(dl.Symbol)
		r.Cycles++
		if r.FirstDecision == "" {
			r.FirstDecision = dl.Time
		}
		r.LastDecision = dl.Time
		switch dl.State {
		case string(types.StateNearOpen):
			r.NearOpen++
		case string(types.StateNearClose):
			r.NearClose++
		}
		if dl.Action == string(types.IntentNone) && isWithheld(dl.Reason) {
			r.Withheld++
			r.WithheldByCode[dl.Reason]++
		}
	})
	if err != nil {
		return "", err
	}

	err = scanLines(s.tradeFile(t), func(b []byte) {
		var tl tradeLine
		if json.Unmarshal(b, &tl) != nil || tl.Symbol == "" {
			return
		}
		r := row(tl.Symbol)
		switch tl.Intent {
		case string(types.IntentOpenTrailingBuy):
			r.BuysSubmitted++
			if q, err := decimal.NewFromString(tl.Qty); err == nil {
				r.BuyQty = r.BuyQty.Add(q)
			}
		case string(types.IntentCloseAll):
			r.ClosesDone++
		}
		r.LastOrderID = tl.OrderID
	})
	if err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	w := csv.NewWriter(out)
	headers := []string{"symbol", "cycles", "near_open_cycles", "near_close_cycles", "withheld", "withheld_reasons",
		"buys_submitted", "buy_qty", "closes_submitted", "last_order_id", "first_cycle", "last_cycle"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, k := range keys {
		r := aggs[k]
		rec := []string{r.Symbol, strconv.Itoa(r.Cycles), strconv.Itoa(r.NearOpen), strconv.Itoa(r.NearClose),
			strconv.Itoa(r.Withheld), formatReasons(r.WithheldByCode), strconv.Itoa(r.BuysSubmitted), r.BuyQty.String(),
			strconv.Itoa(r.ClosesDone), r.LastOrderID, r.FirstDecision, r.LastDecision}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return outPath, w.Error()
}

func (s *eodSummarizer) SummarizeToday() (string, error) { return s.SummarizeDay(s.now()) }

// ShouldRunNow is true when the day has decisions but no summary yet, or when
// orders were logged after the summary was written.
func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	now := s.now().In(s.loc)
	outPath := s.csvPath(now)
	if _, err := os.Stat(s.decisionFile(now)); err != nil {
		return false, outPath
	}
	summary, err := os.Stat(outPath)
	if errors.Is(err, os.ErrNotExist) {
		return true, outPath
	}
	if err != nil {
		return false, outPath
	}
	trades, err := os.Stat(s.tradeFile(now))
	if err == nil && trades.ModTime().After(summary.ModTime()) {
		return true, outPath
	}
	return false, outPath
}

func scanLines(p string, fn func([]byte)) error {
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fn(sc.Bytes())
	}
	return sc.Err()
}

func isWithheld(reason string) bool {
	switch reason {
	case types.ReasonQuoteUnavailable, types.ReasonPositionUnknown, types.ReasonServiceDown, types.ReasonAccountBlocked:
		return true
	}
	return false
}

func formatReasons(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
