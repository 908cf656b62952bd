package domain

import (
	"fmt"
	"time"
)

// RatingCriterion is one flattened, already merged criterion entry of a rating record.
type RatingCriterion struct {
	Code     CriterionCode `json:"code" yaml:"code"`
	Presence Presence      `json:"presence" yaml:"presence"`
	Strength RuleStrength  `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// RatingRecord is the persistence shape of a variant's rating. It carries no source
// attribution, only resolved values and the reviewer's comment.
type RatingRecord struct {
	Comment  string            `json:"comment" yaml:"comment"`
	Criteria []RatingCriterion `json:"criteria" yaml:"criteria"`
}

// Validate checks that every entry names a catalog criterion at most once and carries a
// usable presence and strength.
func (r *RatingRecord) Validate() error {
	var seen [criterionCount]bool
	for i, rc := range r.Criteria {
		crit, err := LookupCriterion(rc.Code)
		if err != nil {
			return fmt.Errorf("criteria[%d]: %w", i, err)
		}
		if seen[rc.Code] {
			return NewValidationError("criteria", fmt.Sprintf("duplicate entry for %s", rc.Code), rc.Code.String())
		}
		seen[rc.Code] = true
		if !rc.Presence.IsValid() {
			return fmt.Errorf("criteria[%d]: %w: %d", i, ErrInvalidPresence, uint8(rc.Presence))
		}
		if rc.Strength != "" && !rc.Strength.IsValid() {
			return fmt.Errorf("criteria[%d]: %w: %q", i, ErrInvalidRuleStrength, rc.Strength)
		}
		if err := crit.ValidateStrength(rc.Strength); err != nil {
			return fmt.Errorf("criteria[%d]: %w", i, err)
		}
	}
	return nil
}

// Lookup returns the entry for code, if the record has one.
func (r *RatingRecord) Lookup(code CriterionCode) (RatingCriterion, bool) {
	for _, rc := range r.Criteria {
		if rc.Code == code {
			return rc, true
		}
	}
	return RatingCriterion{}, false
}

// StoredRating is a rating record as kept by a store, keyed by variant.
type StoredRating struct {
	Variant   string       `json:"variant"`
	Record    RatingRecord `json:"record"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ListOptions pages through stored ratings.
type ListOptions struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
