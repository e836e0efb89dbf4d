package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/monitorclient/internal/models"
)

// ErrNotFound is returned when no journal row has the requested id
var ErrNotFound = errors.New("result not found")

// timeLayout is fixed width so that text order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveResult inserts a batch result or replaces the row with the same id
func (db *DB) SaveResult(r *models.BatchResult) error {
	_, err := db.conn.Exec(`
		INSERT INTO batch_results (id, kind, input, status, output, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			input = excluded.input,
			status = excluded.status,
			output = excluded.output,
			created_at = excluded.created_at,
			completed_at = excluded.completed_at
	`, r.ID, r.Kind, r.Input, r.Status, r.Output,
		r.CreatedAt.UTC().Format(timeLayout), r.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult retrieves a batch result by id
func (db *DB) GetResult(id string) (*models.BatchResult, error) {
	row := db.conn.QueryRow(`
		SELECT id, kind, input, status, output, created_at, completed_at
		FROM batch_results
		WHERE id = ?
	`, id)

	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return r, nil
}

// ListResults returns batch results, newest first
func (db *DB) ListResults(limit, offset int) ([]*models.BatchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.Query(`
		SELECT id, kind, input, status, output, created_at, completed_at
		FROM batch_results
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := []*models.BatchResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

// CountResults returns the number of journal rows
func (db *DB) CountResults() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM batch_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

// DeleteResult removes a batch result by id
func (db *DB) DeleteResult(id string) error {
	res, err := db.conn.Exec("DELETE FROM batch_results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*models.BatchResult, error) {
	var (
		r           models.BatchResult
		createdAt   string
		completedAt string
	)
	if err := s.Scan(&r.ID, &r.Kind, &r.Input, &r.Status, &r.Output, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if r.CompletedAt, err = time.Parse(timeLayout, completedAt); err != nil {
		return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt, err)
	}
	return &r, nil
}
