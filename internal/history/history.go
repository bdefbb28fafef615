// Package history keeps a SQLite log of transformation runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valpere/restyle/internal"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transformation_runs (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		target_tone TEXT NOT NULL,
		target_complexity TEXT NOT NULL,
		content_type TEXT NOT NULL,
		transformed TEXT,
		tone_match REAL,
		grammar_score REAL,
		consistency_score REAL,
		factuality_score REAL,
		suggestions TEXT,
		similar_count INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		failed_stage TEXT,
		error TEXT,
		latency_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON transformation_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON transformation_runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores rec. It satisfies pipeline.Recorder.
func (s *Store) SaveRun(ctx context.Context, rec internal.RunRecord) error {
	suggestions, err := json.Marshal(rec.Quality.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transformation_runs (
			id, content, target_tone, target_complexity, content_type, transformed,
			tone_match, grammar_score, consistency_score, factuality_score, suggestions,
			similar_count, status, failed_stage, error, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, rec.TargetTone, rec.TargetComplexity, rec.ContentType, rec.Transformed,
		rec.Quality.ToneMatch, rec.Quality.GrammarScore, rec.Quality.ConsistencyScore, rec.Quality.FactualityScore, string(suggestions),
		rec.SimilarCount, rec.Status, rec.FailedStage, rec.Error, rec.Latency.Milliseconds(), ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, content, target_tone, target_complexity, content_type,
	COALESCE(transformed, ''), COALESCE(tone_match, 0), COALESCE(grammar_score, 0),
	COALESCE(consistency_score, 0), COALESCE(factuality_score, 0), COALESCE(suggestions, ''),
	similar_count, status, COALESCE(failed_stage, ''), COALESCE(error, ''),
	COALESCE(latency_ms, 0), created_at
	FROM transformation_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (internal.RunRecord, error) {
	var (
		rec         internal.RunRecord
		suggestions string
		latencyMs   int64
	)
	err := row.Scan(&rec.ID, &rec.Content, &rec.TargetTone, &rec.TargetComplexity, &rec.ContentType,
		&rec.Transformed, &rec.Quality.ToneMatch, &rec.Quality.GrammarScore,
		&rec.Quality.ConsistencyScore, &rec.Quality.FactualityScore, &suggestions,
		&rec.SimilarCount, &rec.Status, &rec.FailedStage, &rec.Error,
		&latencyMs, &rec.Timestamp)
	if err != nil {
		return rec, err
	}
	rec.Latency = time.Duration(latencyMs) * time.Millisecond
	if suggestions != "" && suggestions != "null" {
		if err := json.Unmarshal([]byte(suggestions), &rec.Quality.Suggestions); err != nil {
			return rec, fmt.Errorf("run %s: bad suggestions: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*internal.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]internal.RunRecord, error) {
	query := selectRuns + ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []internal.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Stats summarises the run log.
type Stats struct {
	TotalRuns       int
	Retained        int
	NotRetained     int
	RetentionFailed int
	Failed          int
	AvgToneMatch    float64
	AvgLatency      time.Duration
}

// Stats averages tone match over runs that reached the quality check.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var avgLatencyMs float64

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'retained' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'not_retained' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'retention_failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status != 'failed' THEN tone_match END), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM transformation_runs`).Scan(
		&stats.TotalRuns,
		&stats.Retained,
		&stats.NotRetained,
		&stats.RetentionFailed,
		&stats.Failed,
		&stats.AvgToneMatch,
		&avgLatencyMs,
	)
	if err != nil {
		return nil, err
	}
	stats.AvgLatency = time.Duration(avgLatencyMs * float64(time.Millisecond))
	return stats, nil
}

// ClearRuns removes every run and returns how many were deleted.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transformation_runs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
