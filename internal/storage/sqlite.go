package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"telemux/internal/model"
	"telemux/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Journal backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	s, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(s.db); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Open opens a SQLite database at dsn without touching its schema.
func Open(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle for migration tooling.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Record inserts a journal entry and populates its ID and CreatedAt.
func (s *SQLite) Record(ctx context.Context, d *model.Delivery) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (update_id, chat_id, session, outcome, bypass, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UpdateID, d.ChatID, d.Session, string(d.Outcome), boolToInt(d.Bypass), d.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (s *SQLite) ListRecent(ctx context.Context, limit int) ([]model.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, update_id, chat_id, session, outcome, bypass, error, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountByOutcome returns how many entries carry each outcome.
func (s *SQLite) CountByOutcome(ctx context.Context) (map[model.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM deliveries GROUP BY outcome`,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[model.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDelivery(row scannable) (model.Delivery, error) {
	var d model.Delivery
	var outcome, created string
	var bypass int
	err := row.Scan(&d.ID, &d.UpdateID, &d.ChatID, &d.Session, &outcome, &bypass, &d.Error, &created)
	if err != nil {
		return d, fmt.Errorf("scan delivery: %w", err)
	}
	d.Outcome = model.Outcome(outcome)
	d.Bypass = bypass == 1
	d.CreatedAt, _ = time.Parse(timeLayout, created)
	return d, nil
}
