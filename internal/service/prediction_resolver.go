package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// JudgmentCache is a cache tier for automated judgments keyed by source and variant.
type JudgmentCache interface {
	GetJudgments(ctx context.Context, source domain.Source, variant string) ([]domain.Judgment, bool, error)
	SetJudgments(ctx context.Context, source domain.Source, variant string, judgments []domain.Judgment, ttl time.Duration) error
}

// PredictionResolver gathers automated judgments from every configured prediction source,
// reading through an optional memory tier and an optional distributed tier.
type PredictionResolver struct {
	sources []domain.PredictionSource

	memory    JudgmentCache // Tier 1: in-process
	remote    JudgmentCache // Tier 2: shared between replicas
	remoteTTL time.Duration

	semaphore chan struct{}

	logger  *logrus.Logger
	stats   PredictionStats
	statsMu sync.Mutex
}

// PredictionStats counts cache and upstream traffic.
type PredictionStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	RemoteHits    int64     `json:"remote_hits"`
	UpstreamCalls int64     `json:"upstream_calls"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// PredictionResolverConfig configures caching and fan-out.
type PredictionResolverConfig struct {
	RemoteTTL      time.Duration
	MaxConcurrency int
}

// NewPredictionResolver creates a resolver over sources. Either cache may be nil.
func NewPredictionResolver(
	config PredictionResolverConfig,
	sources []domain.PredictionSource,
	memory JudgmentCache,
	remote JudgmentCache,
	logger *logrus.Logger,
) *PredictionResolver {
	if config.RemoteTTL == 0 {
		config.RemoteTTL = 24 * time.Hour
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 3
	}

	return &PredictionResolver{
		sources:   sources,
		memory:    memory,
		remote:    remote,
		remoteTTL: config.RemoteTTL,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		logger:    logger,
		stats:     PredictionStats{LastReset: time.Now()},
	}
}

// Sources returns the configured prediction sources.
func (r *PredictionResolver) Sources() []domain.Source {
	out := make([]domain.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Source())
	}
	return out
}

// Resolve fetches the judgments of a single source for variant.
func (r *PredictionResolver) Resolve(ctx context.Context, source domain.PredictionSource, variant string) ([]domain.Judgment, error) {
	src := source.Source()

	if r.memory != nil {
		if j, ok, _ := r.memory.GetJudgments(ctx, src, variant); ok {
			r.bump(func(s *PredictionStats) { s.MemoryHits++ })
			return j, nil
		}
	}

	if r.remote != nil {
		j, ok, err := r.remote.GetJudgments(ctx, src, variant)
		if err != nil {
			r.logger.WithError(err).WithField("source", src.String()).Warn("Judgment cache read failed")
		}
		if ok {
			r.bump(func(s *PredictionStats) { s.RemoteHits++ })
			r.store(ctx, r.memory, src, variant, j, 0)
			return j, nil
		}
	}

	r.bump(func(s *PredictionStats) { s.UpstreamCalls++ })
	judgments, err := source.Predict(ctx, variant)
	if err != nil {
		r.bump(func(s *PredictionStats) { s.ErrorCount++ })
		return nil, &domain.AnnotationError{Source: src, Err: err}
	}

	r.store(ctx, r.memory, src, variant, judgments, 0)
	r.store(ctx, r.remote, src, variant, judgments, r.remoteTTL)

	r.logger.WithFields(logrus.Fields{
		"source":    src.String(),
		"variant":   variant,
		"judgments": len(judgments),
	}).Info("Retrieved automated judgments")

	return judgments, nil
}

// ResolveAll queries every source concurrently. Results keep the configured source order.
// The first failure is returned once all lookups have finished.
func (r *PredictionResolver) ResolveAll(ctx context.Context, variant string) ([]domain.Judgment, error) {
	results := make([][]domain.Judgment, len(r.sources))
	errs := make([]error, len(r.sources))

	var wg sync.WaitGroup
	for i, source := range r.sources {
		wg.Add(1)
		go func(i int, source domain.PredictionSource) {
			defer wg.Done()

			select {
			case r.semaphore <- struct{}{}:
				defer func() { <-r.semaphore }()
			case <-ctx.Done():
				errs[i] = &domain.AnnotationError{Source: source.Source(), Err: ctx.Err()}
				return
			}

			results[i], errs[i] = r.Resolve(ctx, source, variant)
		}(i, source)
	}
	wg.Wait()

	var all []domain.Judgment
	for i := range r.sources {
		if errs[i] != nil {
			return nil, errs[i]
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// Stats returns a snapshot of the counters.
func (r *PredictionResolver) Stats() PredictionStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *PredictionResolver) store(ctx context.Context, tier JudgmentCache, src domain.Source, variant string, judgments []domain.Judgment, ttl time.Duration) {
	if tier == nil {
		return
	}
	if err := tier.SetJudgments(ctx, src, variant, judgments, ttl); err != nil {
		r.logger.WithError(err).WithField("source", src.String()).Warn("Judgment cache write failed")
	}
}

func (r *PredictionResolver) bump(f func(*PredictionStats)) {
	r.statsMu.Lock()
	f(&r.stats)
	r.statsMu.Unlock()
}
