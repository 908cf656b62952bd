package service

import (
	"fmt"

	"github.com/acmg-amp-rating/internal/domain"
)

// MultiSourceState holds, for every catalog criterion, the assessment asserted by each source.
// Unset (criterion, source) pairs read as Unknown at the criterion's default strength.
//
// The zero value is ready to use. A MultiSourceState is not safe for concurrent mutation;
// hand readers a Clone or wrap it in a ReviewSession.
type MultiSourceState struct {
	assessments [domain.CriterionCount]map[domain.Source]domain.Assessment
}

// NewMultiSourceState returns an empty state.
func NewMultiSourceState() *MultiSourceState {
	return &MultiSourceState{}
}

// SetAssessment records or overwrites the assessment of code by source.
// Strength overrides are validated against the criterion's polarity on adjustable criteria and
// dropped on all others. Setting PresenceUnknown removes the assessment.
func (s *MultiSourceState) SetAssessment(code domain.CriterionCode, source domain.Source, presence domain.Presence, strength domain.RuleStrength) error {
	crit, err := domain.LookupCriterion(code)
	if err != nil {
		return err
	}
	if !source.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	if !presence.IsValid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPresence, uint8(presence))
	}
	if strength != "" && !strength.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRuleStrength, strength)
	}
	if err := crit.ValidateStrength(strength); err != nil {
		return err
	}
	if !crit.Adjustable {
		strength = ""
	}

	if presence == domain.PresenceUnknown {
		delete(s.assessments[code], source)
		return nil
	}
	if s.assessments[code] == nil {
		s.assessments[code] = make(map[domain.Source]domain.Assessment, 1)
	}
	s.assessments[code][source] = domain.Assessment{Presence: presence, Strength: strength}
	return nil
}

// GetAssessment returns the assessment of code by source with its strength resolved.
// It only fails for an unknown criterion or source.
func (s *MultiSourceState) GetAssessment(code domain.CriterionCode, source domain.Source) (domain.Assessment, error) {
	crit, err := domain.LookupCriterion(code)
	if err != nil {
		return domain.Assessment{}, err
	}
	if !source.IsValid() {
		return domain.Assessment{}, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	a, _ := s.lookup(code, source)
	return domain.Assessment{Presence: a.Presence, Strength: crit.ResolveStrength(a.Strength)}, nil
}

// lookup returns the raw stored assessment. Callers guarantee code is valid.
func (s *MultiSourceState) lookup(code domain.CriterionCode, source domain.Source) (domain.Assessment, bool) {
	a, ok := s.assessments[code][source]
	return a, ok
}

// Clear drops every stored assessment.
func (s *MultiSourceState) Clear() {
	s.assessments = [domain.CriterionCount]map[domain.Source]domain.Assessment{}
}

// ClearSource drops every assessment asserted by source.
func (s *MultiSourceState) ClearSource(source domain.Source) {
	for i := range s.assessments {
		delete(s.assessments[i], source)
	}
}

// Sources lists the sources holding a definite judgment for code, manual first and then in
// automated precedence order.
func (s *MultiSourceState) Sources(code domain.CriterionCode) ([]domain.Source, error) {
	if !code.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownCriterion, uint8(code))
	}
	var out []domain.Source
	for _, src := range domain.AllSources() {
		if _, ok := s.lookup(code, src); ok {
			out = append(out, src)
		}
	}
	return out, nil
}

// ToRatingRecord exports the merged state in catalog order, one entry per criterion.
func (s *MultiSourceState) ToRatingRecord(comment string) *domain.RatingRecord {
	effective := EffectiveAll(s)
	rec := &domain.RatingRecord{
		Comment:  comment,
		Criteria: make([]domain.RatingCriterion, 0, len(effective)),
	}
	for _, e := range effective {
		rec.Criteria = append(rec.Criteria, domain.RatingCriterion{
			Code:     e.Code,
			Presence: e.Presence,
			Strength: e.Strength,
		})
	}
	return rec
}

// LoadFromRatingRecord resets the state and imports record as if the reviewer had asserted
// all of it. Criteria missing from the record, or Unknown in it, end up Unknown for every
// source. The record is validated before anything changes.
func (s *MultiSourceState) LoadFromRatingRecord(record *domain.RatingRecord) error {
	if record == nil {
		s.Clear()
		return nil
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.Clear()
	for _, rc := range record.Criteria {
		if err := s.SetAssessment(rc.Code, domain.SourceUser, rc.Presence, rc.Strength); err != nil {
			// unreachable after Validate
			return err
		}
	}
	return nil
}
