// Package history logs which items were shown in each run so later runs can
// rotate them out.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service provides shown-item history.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record logs the items shown by one run in a single transaction.
func (s *Service) Record(ctx context.Context, runID string, shownAt time.Time, items []RecordInput) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shown_items (run_id, item_key, title, year, kind, rank, score, shown_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	ts := shownAt.UTC()
	for _, it := range items {
		kind := it.Kind
		if kind == "" {
			kind = "movie"
		}
		year := sql.NullInt64{Int64: int64(it.Year), Valid: it.Year > 0}
		if _, err := stmt.ExecContext(ctx, runID, it.ItemKey, it.Title, year, kind, it.Rank, it.Score, ts); err != nil {
			return fmt.Errorf("failed to record shown item %s: %w", it.ItemKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	s.logger.Debug().Str("run_id", runID).Int("items", len(items)).Msg("Recorded shown items")
	return nil
}

// RecentlyShown returns the keys shown at or after since.
func (s *Service) RecentlyShown(ctx context.Context, since time.Time) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT item_key FROM shown_items WHERE shown_at >= ?`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recently shown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan recently shown: %w", err)
		}
		out[key] = true
	}
	return out, rows.Err()
}

// List returns shown items, newest first, with pagination.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}
	offset := (opts.Page - 1) * opts.PageSize

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shown_items WHERE (? = '' OR run_id = ?)`, opts.RunID, opts.RunID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, item_key, title, year, kind, rank, score, shown_at
		FROM shown_items
		WHERE (? = '' OR run_id = ?)
		ORDER BY shown_at DESC, rank ASC, id ASC
		LIMIT ? OFFSET ?`,
		opts.RunID, opts.RunID, opts.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.PageSize)
	for rows.Next() {
		var (
			e    Entry
			year sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.ItemKey, &e.Title, &year, &e.Kind, &e.Rank, &e.Score, &e.ShownAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Year = int(year.Int64)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// Cleanup deletes entries shown before olderThan and returns how many were
// removed.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shown_items WHERE shown_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Cleaned up shown history")
	}
	return n, nil
}
