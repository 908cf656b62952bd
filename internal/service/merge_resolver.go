package service

import (
	"github.com/acmg-amp-rating/internal/domain"
)

// Effective merges every source's judgment of code into one effective assessment.
//
// Precedence, first match wins:
//  1. a definite manual judgment;
//  2. a single definite automated judgment, or several that agree (the highest
//     precedence agreeing source supplies the strength);
//  3. automated judgments that disagree give Unknown with Conflict set;
//  4. Unknown.
func Effective(code domain.CriterionCode, state *MultiSourceState) (domain.EffectiveAssessment, error) {
	crit, err := domain.LookupCriterion(code)
	if err != nil {
		return domain.EffectiveAssessment{}, err
	}
	return effective(crit, state), nil
}

// EffectiveAll returns the effective assessment of every criterion in catalog order.
func EffectiveAll(state *MultiSourceState) []domain.EffectiveAssessment {
	all := domain.AllCriteria()
	out := make([]domain.EffectiveAssessment, len(all))
	for i, crit := range all {
		out[i] = effective(crit, state)
	}
	return out
}

func effective(crit domain.Criterion, state *MultiSourceState) domain.EffectiveAssessment {
	unknown := domain.EffectiveAssessment{
		Code:     crit.Code,
		Presence: domain.PresenceUnknown,
		Strength: crit.DefaultStrength,
	}
	if state == nil {
		return unknown
	}

	if a, ok := state.lookup(crit.Code, domain.SourceUser); ok && a.Presence.IsKnown() {
		return domain.EffectiveAssessment{
			Code:     crit.Code,
			Presence: a.Presence,
			Strength: crit.ResolveStrength(a.Strength),
			Source:   domain.SourceUser,
		}
	}

	var (
		winner   domain.Source
		decided  domain.Assessment
		conflict bool
	)
	for _, src := range domain.AutomatedSources() {
		a, ok := state.lookup(crit.Code, src)
		if !ok || !a.Presence.IsKnown() {
			continue
		}
		if winner == "" {
			winner, decided = src, a
			continue
		}
		if a.Presence != decided.Presence {
			conflict = true
		}
	}

	switch {
	case conflict:
		unknown.Conflict = true
		return unknown
	case winner != "":
		return domain.EffectiveAssessment{
			Code:     crit.Code,
			Presence: decided.Presence,
			Strength: crit.ResolveStrength(decided.Strength),
			Source:   winner,
		}
	default:
		return unknown
	}
}
