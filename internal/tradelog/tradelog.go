package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Entry struct {
	Time, CycleID, Symbol, Intent, OrderID, Status, Reason string
	Qty                                                    string `json:",omitempty"`
	TrailPercent                                           string `json:",omitempty"`
	Extra                                                  map[string]any `json:"extra,omitempty"`
}

type DecisionEntry struct {
	Time, CycleID, Symbol, State, Action, Reason string
	SecondsToClose, SecondsSinceOpen             int64
	PositionKnown, PositionPresent, QuoteOK      bool
	PositionQty, Ask                             string
	Extra                                        map[string]any `json:"extra,omitempty"`
}

// Writer appends JSON lines to one file per trading day.
type Writer struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
	now func() time.Time
}

func New(dir string, loc *time.Location) *Writer {
	if dir == "" {
		dir = "logs"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{dir: dir, loc: loc, now: time.Now}
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) dailyFilepath(t time.Time) string {
	return filepath.Join(w.dir, t.Format("2006-01-02")+".txt")
}

func (w *Writer) decisionsFilepath(t time.Time) string {
	return filepath.Join(w.dir, "decisions", t.Format("2006-01-02")+".txt")
}

func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now().In(w.loc)
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(w.dailyFilepath(now), e)
}

func (w *Writer) AppendDecision(e DecisionEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now().In(w.loc)
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(w.decisionsFilepath(now), e)
}

func appendLine(p string, v any) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt logs last modified more than retentionDays ago.
func (w *Writer) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := w.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(w.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier run
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
