// Package store хранит архив прогонов конвертации в SQLite и очередь
// нераспознанных колонок, из которой пополняется схема.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dvmap-service/internal/standardize/model"
)

var ErrNotFound = errors.New("run not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	created_at     INTEGER NOT NULL,
	source         TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	total          INTEGER NOT NULL,
	resolved       INTEGER NOT NULL,
	unresolved     INTEGER NOT NULL,
	ambiguous      INTEGER NOT NULL,
	needs_review   INTEGER NOT NULL,
	change_rate    REAL NOT NULL,
	report_json    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
CREATE TABLE IF NOT EXISTS unresolved (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	column_index    INTEGER NOT NULL,
	input_name      TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	ambiguous       INTEGER NOT NULL,
	best_score      REAL NOT NULL,
	PRIMARY KEY (run_id, column_index)
);
CREATE INDEX IF NOT EXISTS unresolved_norm ON unresolved(normalized_name);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (или создаёт) файл архива и накатывает таблицы.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// один писатель: sqlite не любит параллельные транзакции
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Run: что сохраняем о прогоне.
type Run struct {
	Source   string // http | cli
	FileName string
	Report   model.ConversionReport
}

type RunInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Source        string    `json:"source"`
	FileName      string    `json:"file_name"`
	SchemaVersion string    `json:"schema_version"`
	Total         int       `json:"total_columns"`
	Resolved      int       `json:"resolved"`
	Unresolved    int       `json:"unresolved"`
	Ambiguous     int       `json:"ambiguous"`
	NeedsReview   int       `json:"needs_review"`
	ChangeRate    float64   `json:"change_rate"`
}

// BacklogItem: нераспознанное имя, сгруппированное по нормализованной форме.
type BacklogItem struct {
	NormalizedName string    `json:"normalized_name"`
	Example        string    `json:"example"`
	Occurrences    int       `json:"occurrences"`
	Ambiguous      int       `json:"ambiguous"`
	BestScore      float64   `json:"best_score"`
	LastSeen       time.Time `json:"last_seen"`
}

// SaveRun пишет прогон и его нераспознанные колонки одной транзакцией.
func (s *Store) SaveRun(ctx context.Context, r Run) (string, error) {
	blob, err := json.Marshal(r.Report)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	id := uuid.NewString()
	sum := r.Report.Summary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, source, file_name, schema_version, total, resolved, unresolved, ambiguous, needs_review, change_rate, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UTC().UnixNano(), r.Source, r.FileName, r.Report.SchemaVersion,
		sum.TotalColumns, sum.Resolved, sum.Unresolved, sum.Ambiguous, sum.NeedsReview, sum.ChangeRate, string(blob))
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	for _, c := range r.Report.Columns {
		res := c.Resolution
		if res.Resolved() || res.NormalizedName == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO unresolved
			(run_id, column_index, input_name, normalized_name, ambiguous, best_score)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, c.Index, res.InputName, res.NormalizedName, boolInt(res.Ambiguous), res.Similarity)
		if err != nil {
			return "", fmt.Errorf("save run: unresolved %q: %w", res.InputName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

// ListRuns: последние прогоны, новые первыми.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, created_at, source, file_name, schema_version, total, resolved, unresolved, ambiguous, needs_review, change_rate
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri RunInfo
			ts int64
		)
		if err := rows.Scan(&ri.ID, &ts, &ri.Source, &ri.FileName, &ri.SchemaVersion,
			&ri.Total, &ri.Resolved, &ri.Unresolved, &ri.Ambiguous, &ri.NeedsReview, &ri.ChangeRate); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		ri.CreatedAt = time.Unix(0, ts).UTC()
		out = append(out, ri)
	}
	return out, rows.Err()
}

// GetRun возвращает полный отчёт прогона.
func (s *Store) GetRun(ctx context.Context, id string) (model.ConversionReport, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConversionReport{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.ConversionReport{}, fmt.Errorf("get run: %w", err)
	}
	var rep model.ConversionReport
	if err := json.Unmarshal([]byte(blob), &rep); err != nil {
		return model.ConversionReport{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rep, nil
}

// UnresolvedBacklog: самые частые нераспознанные имена по всем прогонам.
func (s *Store) UnresolvedBacklog(ctx context.Context, limit int) ([]BacklogItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		u.normalized_name, MIN(u.input_name), COUNT(*), SUM(u.ambiguous), MAX(u.best_score), MAX(r.created_at)
		FROM unresolved u JOIN runs r ON r.id = u.run_id
		GROUP BY u.normalized_name
		ORDER BY COUNT(*) DESC, u.normalized_name
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("backlog: %w", err)
	}
	defer rows.Close()

	var out []BacklogItem
	for rows.Next() {
		var (
			it BacklogItem
			ts int64
		)
		if err := rows.Scan(&it.NormalizedName, &it.Example, &it.Occurrences, &it.Ambiguous, &it.BestScore, &ts); err != nil {
			return nil, fmt.Errorf("backlog: %w", err)
		}
		it.LastSeen = time.Unix(0, ts).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
