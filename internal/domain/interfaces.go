package domain

import (
	"context"
)

// RatingStore persists one rating record per variant. Implementations return ErrNotFound
// and ErrAlreadyExists for the obvious cases and a *PersistenceError for everything the
// backend reports.
type RatingStore interface {
	Create(ctx context.Context, variant string, record *RatingRecord) error
	Fetch(ctx context.Context, variant string) (*RatingRecord, error)
	Update(ctx context.Context, variant string, record *RatingRecord) error
	Delete(ctx context.Context, variant string) error
}

// RatingLister is implemented by stores that can enumerate their contents.
type RatingLister interface {
	List(ctx context.Context, opts ListOptions) ([]*StoredRating, error)
	Count(ctx context.Context) (int, error)
}

// PredictionSource supplies automated judgments for a variant.
type PredictionSource interface {
	Source() Source
	Predict(ctx context.Context, variant string) ([]Judgment, error)
}

// VerdictRecorder appends saved verdicts to an audit trail.
type VerdictRecorder interface {
	RecordVerdict(ctx context.Context, rec *VerdictRecord) error
	ListVerdicts(ctx context.Context, variant string, limit int) ([]*VerdictRecord, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetAnnotationConfig() *AnnotationConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
