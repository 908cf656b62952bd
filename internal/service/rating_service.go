package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// Evaluation is the merged evidence of a variant together with its verdict.
type Evaluation struct {
	Variant   string                       `json:"variant,omitempty"`
	Comment   string                       `json:"comment,omitempty"`
	Effective []domain.EffectiveAssessment `json:"effective"`
	Verdict   domain.Verdict               `json:"verdict"`
}

// RatingService coordinates rating persistence, automated predictions and classification.
type RatingService struct {
	logger      *logrus.Logger
	store       domain.RatingStore
	predictions *PredictionResolver
	history     domain.VerdictRecorder
	engine      *ACMGAMPRuleEngine
}

// RatingServiceOption configures optional collaborators.
type RatingServiceOption func(*RatingService)

// WithPredictions pulls automated judgments from resolver when sessions open.
func WithPredictions(resolver *PredictionResolver) RatingServiceOption {
	return func(s *RatingService) {
		s.predictions = resolver
	}
}

// WithHistory appends every saved verdict to recorder.
func WithHistory(recorder domain.VerdictRecorder) RatingServiceOption {
	return func(s *RatingService) {
		s.history = recorder
	}
}

// NewRatingService creates a new rating service
func NewRatingService(logger *logrus.Logger, store domain.RatingStore, opts ...RatingServiceOption) *RatingService {
	s := &RatingService{
		logger: logger,
		store:  store,
		engine: NewACMGAMPRuleEngine(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClassifyRecord treats record as the reviewer's judgment and classifies it.
func (s *RatingService) ClassifyRecord(record *domain.RatingRecord) (*Evaluation, error) {
	state := NewMultiSourceState()
	if err := state.LoadFromRatingRecord(record); err != nil {
		return nil, err
	}
	effective, verdict := s.engine.Evaluate(state)
	eval := &Evaluation{Effective: effective, Verdict: verdict}
	if record != nil {
		eval.Comment = record.Comment
	}
	return eval, nil
}

// MergeJudgments builds a state from source-attributed judgments and classifies it.
// Later judgments for the same (criterion, source) pair overwrite earlier ones.
func (s *RatingService) MergeJudgments(judgments []domain.Judgment) (*Evaluation, error) {
	state := NewMultiSourceState()
	for i, j := range judgments {
		if err := state.SetAssessment(j.Code, j.Source, j.Presence, j.Strength); err != nil {
			return nil, fmt.Errorf("judgment %d: %w", i, err)
		}
	}
	effective, verdict := s.engine.Evaluate(state)
	return &Evaluation{Effective: effective, Verdict: verdict}, nil
}

// GetRating fetches the stored record for variant.
func (s *RatingService) GetRating(ctx context.Context, variant string) (*domain.RatingRecord, error) {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return nil, err
	}
	return s.store.Fetch(ctx, key)
}

// EvaluateRating fetches the stored record for variant and classifies it.
func (s *RatingService) EvaluateRating(ctx context.Context, variant string) (*Evaluation, error) {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return nil, err
	}
	record, err := s.store.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	eval, err := s.ClassifyRecord(record)
	if err != nil {
		return nil, err
	}
	eval.Variant = key
	return eval, nil
}

// CreateRating stores a new record. It fails with ErrAlreadyExists if one is present.
func (s *RatingService) CreateRating(ctx context.Context, variant string, record *domain.RatingRecord) (*Evaluation, error) {
	return s.write(ctx, variant, record, s.store.Create)
}

// UpdateRating replaces an existing record. It fails with ErrNotFound if none is present.
func (s *RatingService) UpdateRating(ctx context.Context, variant string, record *domain.RatingRecord) (*Evaluation, error) {
	return s.write(ctx, variant, record, s.store.Update)
}

// PutRating creates the record or replaces the existing one.
func (s *RatingService) PutRating(ctx context.Context, variant string, record *domain.RatingRecord) (*Evaluation, error) {
	return s.write(ctx, variant, record, s.upsert)
}

func (s *RatingService) upsert(ctx context.Context, key string, record *domain.RatingRecord) error {
	err := s.store.Update(ctx, key, record)
	if errors.Is(err, domain.ErrNotFound) {
		return s.store.Create(ctx, key, record)
	}
	return err
}

func (s *RatingService) write(
	ctx context.Context,
	variant string,
	record *domain.RatingRecord,
	op func(context.Context, string, *domain.RatingRecord) error,
) (*Evaluation, error) {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.NewValidationError("record", "rating record is required", nil)
	}

	// Normalize through the state so the stored record is complete and in catalog order.
	eval, err := s.ClassifyRecord(record)
	if err != nil {
		return nil, err
	}
	normalized := recordFromEffective(record.Comment, eval.Effective)

	if err := op(ctx, key, normalized); err != nil {
		return nil, err
	}
	eval.Variant = key

	s.logger.WithFields(logrus.Fields{
		"variant":        key,
		"classification": eval.Verdict.Classification.String(),
		"rule":           string(eval.Verdict.Rule),
	}).Info("Saved rating")

	s.recordHistory(ctx, key, record.Comment, eval.Verdict)
	return eval, nil
}

// DeleteRating removes the stored record for variant.
func (s *RatingService) DeleteRating(ctx context.Context, variant string) error {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.WithField("variant", key).Info("Deleted rating")
	return nil
}

// ListRatings pages through stored ratings when the store supports it.
func (s *RatingService) ListRatings(ctx context.Context, opts domain.ListOptions) ([]*domain.StoredRating, int, error) {
	lister, ok := s.store.(domain.RatingLister)
	if !ok {
		return nil, 0, fmt.Errorf("rating store %T cannot list ratings", s.store)
	}
	ratings, err := lister.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := lister.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ratings, total, nil
}

// History returns the most recent saved verdicts for variant, newest first.
func (s *RatingService) History(ctx context.Context, variant string, limit int) ([]*domain.VerdictRecord, error) {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []*domain.VerdictRecord{}, nil
	}
	return s.history.ListVerdicts(ctx, key, limit)
}

// OpenSession starts reviewing variant: the persisted rating, if any, becomes the manual
// layer and automated judgments from every prediction source are layered beneath it.
func (s *RatingService) OpenSession(ctx context.Context, variant string) (*ReviewSession, error) {
	key, err := domain.CanonicalVariant(variant)
	if err != nil {
		return nil, err
	}

	session := &ReviewSession{
		id:       uuid.New().String(),
		variant:  key,
		state:    NewMultiSourceState(),
		engine:   s.engine,
		openedAt: time.Now(),
	}

	record, err := s.store.Fetch(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if err := session.state.LoadFromRatingRecord(record); err != nil {
			return nil, err
		}
		session.comment = record.Comment
		session.persisted = true
	}

	if s.predictions != nil {
		judgments, err := s.predictions.ResolveAll(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, j := range judgments {
			if err := session.state.SetAssessment(j.Code, j.Source, j.Presence, j.Strength); err != nil {
				return nil, &domain.AnnotationError{Source: j.Source, Err: err}
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.id,
		"variant":    key,
		"persisted":  session.persisted,
	}).Info("Opened review session")

	return session, nil
}

// SaveSession persists the session's merged state and records the verdict.
func (s *RatingService) SaveSession(ctx context.Context, session *ReviewSession, comment string) (*Evaluation, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.comment = comment
	effective, verdict := session.evaluateLocked()
	record := recordFromEffective(comment, effective)

	var err error
	if session.persisted {
		err = s.store.Update(ctx, session.variant, record)
	} else {
		err = s.store.Create(ctx, session.variant, record)
		if errors.Is(err, domain.ErrAlreadyExists) {
			err = s.store.Update(ctx, session.variant, record)
		}
	}
	if err != nil {
		return nil, err
	}
	session.persisted = true

	s.logger.WithFields(logrus.Fields{
		"session_id":     session.id,
		"variant":        session.variant,
		"classification": verdict.Classification.String(),
	}).Info("Saved review session")

	s.recordHistory(ctx, session.variant, comment, verdict)

	return &Evaluation{Variant: session.variant, Comment: comment, Effective: effective, Verdict: verdict}, nil
}

// recordHistory appends to the audit trail. The rating is already stored at this point, so
// failures are logged rather than returned.
func (s *RatingService) recordHistory(ctx context.Context, variant, comment string, verdict domain.Verdict) {
	if s.history == nil {
		return
	}
	rec := &domain.VerdictRecord{
		ID:             uuid.New().String(),
		Variant:        variant,
		Classification: verdict.Classification,
		Rule:           verdict.Rule,
		Contributing:   verdict.Contributing,
		Comment:        comment,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.history.RecordVerdict(ctx, rec); err != nil {
		s.logger.WithError(err).WithField("variant", variant).Warn("Failed to record verdict history")
	}
}

func recordFromEffective(comment string, effective []domain.EffectiveAssessment) *domain.RatingRecord {
	rec := &domain.RatingRecord{Comment: comment, Criteria: make([]domain.RatingCriterion, 0, len(effective))}
	for _, e := range effective {
		rec.Criteria = append(rec.Criteria, domain.RatingCriterion{Code: e.Code, Presence: e.Presence, Strength: e.Strength})
	}
	return rec
}

// ReviewSession is one reviewer's working copy of a variant's evidence. Its methods are safe
// for concurrent use and apply each update atomically.
type ReviewSession struct {
	mu        sync.Mutex
	id        string
	variant   string
	comment   string
	state     *MultiSourceState
	engine    *ACMGAMPRuleEngine
	persisted bool
	openedAt  time.Time
}

// ID returns the session identifier.
func (rs *ReviewSession) ID() string { return rs.id }

// Variant returns the canonical variant under review.
func (rs *ReviewSession) Variant() string { return rs.variant }

// OpenedAt returns when the session started.
func (rs *ReviewSession) OpenedAt() time.Time { return rs.openedAt }

// Persisted reports whether a rating for the variant exists in the store.
func (rs *ReviewSession) Persisted() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.persisted
}

// Comment returns the reviewer comment.
func (rs *ReviewSession) Comment() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.comment
}

// SetJudgment records the reviewer's judgment of code and returns the updated effective
// assessment of that criterion together with the new verdict.
func (rs *ReviewSession) SetJudgment(code domain.CriterionCode, presence domain.Presence, strength domain.RuleStrength) (domain.EffectiveAssessment, domain.Verdict, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := rs.state.SetAssessment(code, domain.SourceUser, presence, strength); err != nil {
		return domain.EffectiveAssessment{}, domain.Verdict{}, err
	}
	ea, err := Effective(code, rs.state)
	if err != nil {
		return domain.EffectiveAssessment{}, domain.Verdict{}, err
	}
	_, verdict := rs.evaluateLocked()
	return ea, verdict, nil
}

// Assessment returns what source asserted for code in this session.
func (rs *ReviewSession) Assessment(code domain.CriterionCode, source domain.Source) (domain.Assessment, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state.GetAssessment(code, source)
}

// Sources lists which sources asserted code.
func (rs *ReviewSession) Sources(code domain.CriterionCode) ([]domain.Source, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state.Sources(code)
}

// Evaluate merges and classifies the current state.
func (rs *ReviewSession) Evaluate() *Evaluation {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	effective, verdict := rs.evaluateLocked()
	return &Evaluation{Variant: rs.variant, Comment: rs.comment, Effective: effective, Verdict: verdict}
}

// Reset drops the reviewer's judgments, keeping automated ones.
func (rs *ReviewSession) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.state.ClearSource(domain.SourceUser)
}

func (rs *ReviewSession) evaluateLocked() ([]domain.EffectiveAssessment, domain.Verdict) {
	return rs.engine.Evaluate(rs.state)
}
