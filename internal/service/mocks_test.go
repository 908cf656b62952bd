package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/acmg-amp-rating/internal/domain"
)

// MockRatingStore is a mock implementation of domain.RatingStore
type MockRatingStore struct {
	mock.Mock
}

func (m *MockRatingStore) Create(ctx context.Context, variant string, record *domain.RatingRecord) error {
	return m.Called(ctx, variant, record).Error(0)
}

func (m *MockRatingStore) Fetch(ctx context.Context, variant string) (*domain.RatingRecord, error) {
	args := m.Called(ctx, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingRecord), args.Error(1)
}

func (m *MockRatingStore) Update(ctx context.Context, variant string, record *domain.RatingRecord) error {
	return m.Called(ctx, variant, record).Error(0)
}

func (m *MockRatingStore) Delete(ctx context.Context, variant string) error {
	return m.Called(ctx, variant).Error(0)
}

// MockPredictionSource is a mock implementation of domain.PredictionSource
type MockPredictionSource struct {
	mock.Mock
	source domain.Source
}

func (m *MockPredictionSource) Source() domain.Source {
	return m.source
}

func (m *MockPredictionSource) Predict(ctx context.Context, variant string) ([]domain.Judgment, error) {
	args := m.Called(ctx, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Judgment), args.Error(1)
}

// MockVerdictRecorder is a mock implementation of domain.VerdictRecorder
type MockVerdictRecorder struct {
	mock.Mock
}

func (m *MockVerdictRecorder) RecordVerdict(ctx context.Context, rec *domain.VerdictRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockVerdictRecorder) ListVerdicts(ctx context.Context, variant string, limit int) ([]*domain.VerdictRecord, error) {
	args := m.Called(ctx, variant, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VerdictRecord), args.Error(1)
}

// mapJudgmentCache is a trivial JudgmentCache for tests.
type mapJudgmentCache struct {
	entries map[string][]domain.Judgment
}

func newMapJudgmentCache() *mapJudgmentCache {
	return &mapJudgmentCache{entries: make(map[string][]domain.Judgment)}
}

func (c *mapJudgmentCache) GetJudgments(_ context.Context, source domain.Source, variant string) ([]domain.Judgment, bool, error) {
	j, ok := c.entries[string(source)+"/"+variant]
	return j, ok, nil
}

func (c *mapJudgmentCache) SetJudgments(_ context.Context, source domain.Source, variant string, judgments []domain.Judgment, _ time.Duration) error {
	c.entries[string(source)+"/"+variant] = judgments
	return nil
}
