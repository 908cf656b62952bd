package rating

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/acmg-amp-rating/internal/domain"
)

// sqlStore holds the database/sql logic shared by the SQLite and PostgreSQL stores.
// Queries are written with '?' placeholders and rebound per dialect.
type sqlStore struct {
	db     *sql.DB
	rebind func(query string) string
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRating(s scanner) (*domain.StoredRating, error) {
	r := &domain.StoredRating{}
	var criteria []byte
	if err := s.Scan(&r.Variant, &r.Record.Comment, &criteria, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteria, &r.Record.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria of %s: %w", r.Variant, err)
	}
	return r, nil
}

func encodeCriteria(record *domain.RatingRecord) ([]byte, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	criteria := record.Criteria
	if criteria == nil {
		criteria = []domain.RatingCriterion{}
	}
	return json.Marshal(criteria)
}

func (s *sqlStore) Create(ctx context.Context, variant string, record *domain.RatingRecord) error {
	criteria, err := encodeCriteria(record)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO ratings (variant, comment, criteria, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (variant) DO NOTHING
	`), variant, record.Comment, string(criteria), now, now)
	if err != nil {
		return domain.NewPersistenceError("create", variant, 0, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.NewPersistenceError("create", variant, 0, err)
	}
	if n == 0 {
		return fmt.Errorf("rating for %s: %w", variant, domain.ErrAlreadyExists)
	}
	return nil
}

func (s *sqlStore) Fetch(ctx context.Context, variant string) (*domain.RatingRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT variant, comment, criteria, created_at, updated_at
		FROM ratings
		WHERE variant = ?
	`), variant)

	r, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rating for %s: %w", variant, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewPersistenceError("fetch", variant, 0, err)
	}
	return &r.Record, nil
}

func (s *sqlStore) Update(ctx context.Context, variant string, record *domain.RatingRecord) error {
	criteria, err := encodeCriteria(record)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE ratings SET comment = ?, criteria = ?, updated_at = ?
		WHERE variant = ?
	`), record.Comment, string(criteria), time.Now().UTC(), variant)
	if err != nil {
		return domain.NewPersistenceError("update", variant, 0, err)
	}
	return expectOneRow(result, "update", variant)
}

func (s *sqlStore) Delete(ctx context.Context, variant string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM ratings WHERE variant = ?"), variant)
	if err != nil {
		return domain.NewPersistenceError("delete", variant, 0, err)
	}
	return expectOneRow(result, "delete", variant)
}

func expectOneRow(result sql.Result, op, variant string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return domain.NewPersistenceError(op, variant, 0, err)
	}
	if n == 0 {
		return fmt.Errorf("rating for %s: %w", variant, domain.ErrNotFound)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context, opts domain.ListOptions) ([]*domain.StoredRating, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT variant, comment, criteria, created_at, updated_at
		FROM ratings
		ORDER BY updated_at DESC, variant
		LIMIT ? OFFSET ?
	`), limit, opts.Offset)
	if err != nil {
		return nil, domain.NewPersistenceError("list", "", 0, err)
	}
	defer rows.Close()

	result := []*domain.StoredRating{}
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("list", "", 0, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list", "", 0, err)
	}
	return result, nil
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ratings").Scan(&count); err != nil {
		return 0, domain.NewPersistenceError("count", "", 0, err)
	}
	return count, nil
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func (s *sqlStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, domain.ListOptions{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list ratings: %w", err)
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Ratings:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func (s *sqlStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Ratings {
		if r == nil {
			continue
		}
		variant, err := domain.CanonicalVariant(r.Variant)
		if err != nil {
			return imported, skipped, err
		}

		err = s.Create(ctx, variant, &r.Record)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			skipped++
		case err != nil:
			return imported, skipped, fmt.Errorf("failed to import %s: %w", variant, err)
		default:
			imported++
		}
	}
	return imported, skipped, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
