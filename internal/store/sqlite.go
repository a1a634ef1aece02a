package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/richardpark-msft/vigil/internal/models"
)

// SQLiteStore keeps runs in a single SQLite database. Reports are stored as
// JSON text, timelines as gzip blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLiteStore at dbPath and runs migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		plan TEXT NOT NULL,
		status TEXT NOT NULL,
		pass_rate REAL NOT NULL,
		steps INTEGER NOT NULL,
		observed INTEGER NOT NULL,
		deviations INTEGER NOT NULL,
		uncertain INTEGER NOT NULL,
		duration REAL NOT NULL,
		provider TEXT,
		model TEXT,
		report TEXT NOT NULL,
		timeline BLOB,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_plan ON runs(plan);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces a run row.
func (s *SQLiteStore) SaveRun(run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	if run.Report == nil {
		return fmt.Errorf("run %s has no report", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", run.ID, err)
	}

	var timeline []byte
	if run.Timeline != nil {
		timeline, err = encodeTimeline(run.Timeline)
		if err != nil {
			return fmt.Errorf("encoding timeline for run %s: %w", run.ID, err)
		}
	}

	sum := runToSummary(run)
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO runs (id, plan, status, pass_rate, steps, observed, deviations, uncertain, duration, provider, model, report, timeline, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, sum.Plan, string(sum.Status), sum.PassRate, sum.Steps, sum.Observed, sum.Deviations, sum.Uncertain,
		sum.Duration, sum.Provider, sum.Model, string(report), timeline, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns all runs sorted by the given field and order.
func (s *SQLiteStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	column := "created_at"
	switch sortField {
	case "passRate":
		column = "pass_rate"
	case "duration":
		column = "duration"
	case "steps":
		column = "steps"
	}
	direction := "DESC"
	if order == "asc" {
		direction = "ASC"
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, plan, status, pass_rate, steps, observed, deviations, uncertain, duration, provider, model, created_at
		 FROM runs ORDER BY %s %s`, column, direction))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var provider, model sql.NullString
		if err := rows.Scan(&r.ID, &r.Plan, &r.Status, &r.PassRate, &r.Steps, &r.Observed, &r.Deviations,
			&r.Uncertain, &r.Duration, &provider, &model, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Provider = provider.String
		r.Model = model.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run with its full report.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	var report string
	run := &Run{ID: id}

	err := s.db.QueryRow(`SELECT report, created_at FROM runs WHERE id = ?`, id).
		Scan(&report, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
		return nil, fmt.Errorf("decoding report for run %s: %w", id, err)
	}
	return run, nil
}

// Timeline loads the timeline blob stored for a run.
func (s *SQLiteStore) Timeline(id string) (*models.Timeline, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT timeline FROM runs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("timeline for run %s: %w", id, ErrNotFound)
	}
	return decodeTimeline(blob)
}

// Summary returns aggregate metrics across all runs.
func (s *SQLiteStore) Summary() (*Summary, error) {
	resp := &Summary{ByStatus: make(map[string]int)}

	var totalObserved int
	var totalDuration float64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(steps), 0), COALESCE(SUM(observed), 0), COALESCE(SUM(duration), 0) FROM runs`).
		Scan(&resp.TotalRuns, &resp.TotalSteps, &totalObserved, &totalDuration)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		resp.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if resp.TotalSteps > 0 {
		resp.PassRate = float64(totalObserved) / float64(resp.TotalSteps) * 100.0
	}
	if resp.TotalRuns > 0 {
		resp.AvgDuration = totalDuration / float64(resp.TotalRuns)
	}

	return resp, nil
}

// Ensure SQLiteStore satisfies RunStore.
var _ RunStore = (*SQLiteStore)(nil)
