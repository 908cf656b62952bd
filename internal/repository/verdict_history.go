package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// DefaultHistoryLimit applies when ListVerdicts is called without a limit.
const DefaultHistoryLimit = 50

// VerdictHistoryRepository keeps the audit trail of saved verdicts in PostgreSQL.
type VerdictHistoryRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewVerdictHistoryRepository creates a new verdict history repository
func NewVerdictHistoryRepository(db *pgxpool.Pool, logger *logrus.Logger) *VerdictHistoryRepository {
	return &VerdictHistoryRepository{
		db:  db,
		log: logger,
	}
}

// RecordVerdict appends rec. Missing ID and timestamp are filled in.
func (r *VerdictHistoryRepository) RecordVerdict(ctx context.Context, rec *domain.VerdictRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	contributing := make([]string, len(rec.Contributing))
	for i, code := range rec.Contributing {
		contributing[i] = code.String()
	}

	query := `
		INSERT INTO verdict_history (
			id, variant, classification, rule, contributing, comment, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.Variant,
		string(rec.Classification),
		string(rec.Rule),
		contributing,
		rec.Comment,
		rec.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"variant": rec.Variant,
			"error":   err,
		}).Error("Failed to record verdict")
		return fmt.Errorf("recording verdict: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"verdict_id":     rec.ID,
		"variant":        rec.Variant,
		"classification": rec.Classification,
	}).Debug("Verdict recorded")

	return nil
}

// ListVerdicts returns the most recent verdicts for variant, newest first.
func (r *VerdictHistoryRepository) ListVerdicts(ctx context.Context, variant string, limit int) ([]*domain.VerdictRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id::text, variant, classification, rule, contributing, comment, created_at
		FROM verdict_history
		WHERE variant = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, variant, limit)
	if err != nil {
		return nil, fmt.Errorf("listing verdicts: %w", err)
	}
	defer rows.Close()

	records := []*domain.VerdictRecord{}
	for rows.Next() {
		var (
			rec            domain.VerdictRecord
			classification string
			rule           string
			contributing   []string
		)
		if err := rows.Scan(&rec.ID, &rec.Variant, &classification, &rule, &contributing, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning verdict: %w", err)
		}
		rec.Classification = domain.Classification(classification)
		rec.Rule = domain.CombiningRule(rule)
		rec.Contributing = make([]domain.CriterionCode, 0, len(contributing))
		for _, name := range contributing {
			code, err := domain.ParseCriterionCode(name)
			if err != nil {
				return nil, fmt.Errorf("verdict %s: %w", rec.ID, err)
			}
			rec.Contributing = append(rec.Contributing, code)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verdicts: %w", err)
	}

	return records, nil
}

// DeleteVerdicts removes the history of variant and reports how many rows went.
func (r *VerdictHistoryRepository) DeleteVerdicts(ctx context.Context, variant string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM verdict_history WHERE variant = $1", variant)
	if err != nil {
		return 0, fmt.Errorf("deleting verdicts: %w", err)
	}
	return tag.RowsAffected(), nil
}
