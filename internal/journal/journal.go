package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"session-trader/internal/types"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Record is one intent submission for one instrument in one session.
type Record struct {
	Key         string    `json:"key"`
	Instrument  string    `json:"instrument"`
	Intent      string    `json:"intent"`
	SessionDate string    `json:"session_date"`
	CycleID     string    `json:"cycle_id"`
	Status      Status    `json:"status"`
	OrderID     string    `json:"order_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key derives the idempotency key of an intent. The same instrument, intent and
// session date always give the same 32-char key.
func Key(instrument, intent, sessionDate string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(instrument) + "|" + intent + "|" + sessionDate))
	return hex.EncodeToString(sum[:16])
}

// Store persists records in SQLite.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates the database file (and its directory) if needed and migrates the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			key TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			intent TEXT NOT NULL,
			session_date TEXT NOT NULL,
			cycle_id TEXT NOT NULL,
			status TEXT NOT NULL,
			order_id TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_date, instrument);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Reserve marks rec.Key as pending. It fails with types.ErrDuplicate when the key
// is already pending or submitted; a failed key can be reserved again.
func (s *Store) Reserve(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return errors.New("journal: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (key, instrument, intent, session_date, cycle_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			cycle_id = excluded.cycle_id,
			status = excluded.status,
			error = '',
			updated_at = excluded.updated_at
		WHERE actions.status = ?`,
		rec.Key, rec.Instrument, rec.Intent, rec.SessionDate, rec.CycleID, string(StatusPending), ts, ts,
		string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", rec.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", rec.Key, err)
	}
	if n == 0 {
		return types.Duplicate("journal.Reserve",
			fmt.Errorf("%s already recorded for %s on %s", rec.Intent, rec.Instrument, rec.SessionDate))
	}
	return nil
}

func (s *Store) Complete(ctx context.Context, key, orderID string) error {
	return s.update(ctx, key, StatusSubmitted, orderID, "")
}

func (s *Store) Fail(ctx context.Context, key string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, key, StatusFailed, "", msg)
}

func (s *Store) update(ctx context.Context, key string, st Status, orderID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET status = ?, order_id = ?, error = ?, updated_at = ? WHERE key = ?`,
		string(st), orderID, msg, s.now().UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s: no such record", key)
	}
	return nil
}

// Get returns the record for key, if any.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT key, instrument, intent, session_date, cycle_id, status, order_id, error, created_at, updated_at
		FROM actions WHERE key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Recent lists the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, instrument, intent, session_date, cycle_id, status, order_id, error, created_at, updated_at
		FROM actions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec              Record
		status           string
		created, updated int64
	)
	if err := sc.Scan(&rec.Key, &rec.Instrument, &rec.Intent, &rec.SessionDate, &rec.CycleID,
		&status, &rec.OrderID, &rec.Error, &created, &updated); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}
