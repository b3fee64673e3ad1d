package baseline

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"phio/internal/logging"
)

// History is the validation-run ledger. Diffs themselves are ephemeral;
// only per-run counts and verdicts are recorded here.
type History struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Run is one recorded validation run.
type Run struct {
	ID             string
	InstrumentPath string
	InstrumentHash string
	Timestamp      time.Time
	Breaking       int
	NonBreaking    int
	Informational  int
	Warnings       int
	Verdict        string // "pass" | "breaking" | "gate_failed"
}

// OpenHistory creates or opens the run ledger under phioDir.
func OpenHistory(phioDir string) (*History, error) {
	dbPath := filepath.Join(phioDir, "history.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	h := &History{db: db, dbPath: dbPath}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.dbPath
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		instrument_path TEXT NOT NULL,
		instrument_hash TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		breaking INTEGER NOT NULL DEFAULT 0,
		non_breaking INTEGER NOT NULL DEFAULT 0,
		informational INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		verdict TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_instrument ON runs(instrument_path);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`
	_, err := h.db.Exec(schema)
	return err
}

// RecordRun stores a validation run.
func (h *History) RecordRun(r *Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	_, err := h.db.Exec(`
		INSERT INTO runs (id, instrument_path, instrument_hash, timestamp,
			breaking, non_breaking, informational, warnings, verdict)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.InstrumentPath, r.InstrumentHash, r.Timestamp,
		r.Breaking, r.NonBreaking, r.Informational, r.Warnings, r.Verdict)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logging.Store("history: recorded run %s (%s) for %s", r.ID, r.Verdict, r.InstrumentPath)
	return nil
}

// RecentRuns retrieves recent runs for one instrument, newest first.
// An empty instrument path returns runs across all instruments.
func (h *History) RecentRuns(instrument string, limit int) ([]Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	query := `
		SELECT id, instrument_path, instrument_hash, timestamp,
			breaking, non_breaking, informational, warnings, verdict
		FROM runs`
	args := []any{}
	if instrument != "" {
		query += ` WHERE instrument_path = ?`
		args = append(args, instrument)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InstrumentPath, &r.InstrumentHash, &r.Timestamp,
			&r.Breaking, &r.NonBreaking, &r.Informational, &r.Warnings, &r.Verdict); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
