// Package rating provides persistent storage for variant rating records.
// Each variant has at most one record holding the reviewer's merged criteria and comment.
package rating

import (
	"context"
	"io"
	"time"

	"github.com/acmg-amp-rating/internal/domain"
)

// Store defines the interface for rating storage operations.
type Store interface {
	domain.RatingStore
	domain.RatingLister

	// ExportJSON writes every stored rating to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an export and creates the ratings it contains.
	// Variants that already have a rating are skipped, not overwritten.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Count      int                    `json:"count"`
	Ratings    []*domain.StoredRating `json:"ratings"`
}

// ExportVersion is written into every export.
const ExportVersion = "1.0"

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 100
