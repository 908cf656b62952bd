package service

import (
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// combiningRule is one row of ACMG/AMP Table 5: a predicate over bucket counts plus the
// buckets it reads, which decide the contributing criteria.
type combiningRule struct {
	ID             domain.CombiningRule
	Classification domain.Classification
	Reads          []domain.EvidenceBucket
	Matches        func(c domain.EvidenceCounts) bool
}

// pathogenicRules are evaluated in order; Pathogenic rows precede Likely Pathogenic ones.
var pathogenicRules = []combiningRule{
	{domain.RulePathogenicVeryStrongStrong, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPVS, domain.BucketPS},
		func(c domain.EvidenceCounts) bool { return c.PVS >= 1 && c.PS >= 1 }},
	{domain.RulePathogenicVeryStrongModerates, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPVS, domain.BucketPM},
		func(c domain.EvidenceCounts) bool { return c.PVS >= 1 && c.PM >= 2 }},
	{domain.RulePathogenicVeryStrongModerateSupport, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPVS, domain.BucketPM, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PVS >= 1 && c.PM >= 1 && c.PP >= 1 }},
	{domain.RulePathogenicVeryStrongSupporting, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPVS, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PVS >= 1 && c.PP >= 2 }},
	{domain.RulePathogenicTwoStrong, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS},
		func(c domain.EvidenceCounts) bool { return c.PS >= 2 }},
	{domain.RulePathogenicStrongModerates, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS, domain.BucketPM},
		func(c domain.EvidenceCounts) bool { return c.PS >= 1 && c.PM >= 3 }},
	{domain.RulePathogenicStrongModeratesSupporting, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS, domain.BucketPM, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PS >= 1 && c.PM >= 2 && c.PP >= 2 }},
	{domain.RulePathogenicStrongModerateSupporting, domain.PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS, domain.BucketPM, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PS >= 1 && c.PM >= 1 && c.PP >= 4 }},

	{domain.RuleLikelyPathogenicVeryStrongModerate, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPVS, domain.BucketPM},
		func(c domain.EvidenceCounts) bool { return c.PVS >= 1 && c.PM >= 1 }},
	{domain.RuleLikelyPathogenicStrongModerate, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS, domain.BucketPM},
		func(c domain.EvidenceCounts) bool { return c.PS >= 1 && (c.PM == 1 || c.PM == 2) }},
	{domain.RuleLikelyPathogenicStrongSupporting, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPS, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PS >= 1 && c.PP >= 2 }},
	{domain.RuleLikelyPathogenicModerates, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPM},
		func(c domain.EvidenceCounts) bool { return c.PM >= 3 }},
	{domain.RuleLikelyPathogenicModeratesSupport, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPM, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PM >= 2 && c.PP >= 2 }},
	{domain.RuleLikelyPathogenicModerateSupporting, domain.LIKELY_PATHOGENIC,
		[]domain.EvidenceBucket{domain.BucketPM, domain.BucketPP},
		func(c domain.EvidenceCounts) bool { return c.PM >= 1 && c.PP >= 4 }},
}

var benignRules = []combiningRule{
	{domain.RuleBenignStandAlone, domain.BENIGN,
		[]domain.EvidenceBucket{domain.BucketBA},
		func(c domain.EvidenceCounts) bool { return c.BA >= 1 }},
	{domain.RuleBenignTwoStrong, domain.BENIGN,
		[]domain.EvidenceBucket{domain.BucketBS},
		func(c domain.EvidenceCounts) bool { return c.BS >= 2 }},

	{domain.RuleLikelyBenignStrongSupporting, domain.LIKELY_BENIGN,
		[]domain.EvidenceBucket{domain.BucketBS, domain.BucketBP},
		func(c domain.EvidenceCounts) bool { return c.BS >= 1 && c.BP >= 1 }},
	{domain.RuleLikelyBenignSupporting, domain.LIKELY_BENIGN,
		[]domain.EvidenceBucket{domain.BucketBP},
		func(c domain.EvidenceCounts) bool { return c.BP >= 2 }},
}

// Classify combines effective assessments into a verdict following ACMG/AMP 2015 Table 5.
// It is total: malformed entries (unknown codes) are ignored, and a later entry for the same
// criterion replaces an earlier one.
func Classify(effective []domain.EffectiveAssessment) domain.Verdict {
	var (
		buckets [domain.CriterionCount]domain.EvidenceBucket
		counts  domain.EvidenceCounts
	)
	for _, e := range effective {
		crit, err := domain.LookupCriterion(e.Code)
		if err != nil {
			continue
		}
		buckets[e.Code] = ""
		if e.Presence != domain.PresencePresent {
			continue
		}
		b, ok := domain.BucketFor(crit.Category, crit.ResolveStrength(e.Strength))
		if !ok {
			b, _ = domain.BucketFor(crit.Category, crit.DefaultStrength)
		}
		buckets[e.Code] = b
	}
	for _, b := range buckets {
		counts.Add(b)
	}

	pathogenic := firstMatch(pathogenicRules, counts)
	benign := firstMatch(benignRules, counts)

	verdict := domain.Verdict{
		Classification: domain.VUS,
		Rule:           domain.RuleNoRuleMatched,
		Contributing:   []domain.CriterionCode{},
		Counts:         counts,
	}
	var read []domain.EvidenceBucket
	if pathogenic != nil {
		verdict.PathogenicRule = pathogenic.ID
		read = append(read, pathogenic.Reads...)
	}
	if benign != nil {
		verdict.BenignRule = benign.ID
		read = append(read, benign.Reads...)
	}

	switch {
	case pathogenic != nil && benign != nil:
		verdict.Rule = domain.RuleConflictingEvidence
	case pathogenic != nil:
		verdict.Classification, verdict.Rule = pathogenic.Classification, pathogenic.ID
	case benign != nil:
		verdict.Classification, verdict.Rule = benign.Classification, benign.ID
	}

	for code, b := range buckets {
		if b != "" && containsBucket(read, b) {
			verdict.Contributing = append(verdict.Contributing, domain.CriterionCode(code))
		}
	}
	verdict.Significance = verdict.Classification.ClinicalSignificance()
	verdict.ActionRequired = verdict.Classification.RequiresClinicalAction()
	return verdict
}

func firstMatch(rules []combiningRule, counts domain.EvidenceCounts) *combiningRule {
	for i := range rules {
		if rules[i].Matches(counts) {
			return &rules[i]
		}
	}
	return nil
}

func containsBucket(buckets []domain.EvidenceBucket, b domain.EvidenceBucket) bool {
	for _, x := range buckets {
		if x == b {
			return true
		}
	}
	return false
}

// RuleDescription documents one combining rule for presentation layers.
type RuleDescription struct {
	ID             domain.CombiningRule    `json:"id" yaml:"id"`
	Classification domain.Classification   `json:"classification" yaml:"classification"`
	Reads          []domain.EvidenceBucket `json:"reads" yaml:"reads"`
}

// CombiningRules lists the pathogenic then benign rules in evaluation order.
func CombiningRules() []RuleDescription {
	out := make([]RuleDescription, 0, len(pathogenicRules)+len(benignRules))
	for _, set := range [][]combiningRule{pathogenicRules, benignRules} {
		for _, r := range set {
			out = append(out, RuleDescription{
				ID:             r.ID,
				Classification: r.Classification,
				Reads:          append([]domain.EvidenceBucket(nil), r.Reads...),
			})
		}
	}
	return out
}

// ACMGAMPRuleEngine wraps the combining rules with logging for the service layers.
type ACMGAMPRuleEngine struct {
	logger *logrus.Logger
}

// NewACMGAMPRuleEngine creates a new ACMG/AMP rule engine
func NewACMGAMPRuleEngine(logger *logrus.Logger) *ACMGAMPRuleEngine {
	return &ACMGAMPRuleEngine{logger: logger}
}

// CombineEvidence classifies a set of effective assessments.
func (e *ACMGAMPRuleEngine) CombineEvidence(effective []domain.EffectiveAssessment) domain.Verdict {
	e.logger.WithField("assessment_count", len(effective)).Debug("Combining ACMG/AMP evidence")

	verdict := Classify(effective)

	e.logger.WithFields(logrus.Fields{
		"classification":  verdict.Classification.String(),
		"rule":            string(verdict.Rule),
		"pathogenic_rule": string(verdict.PathogenicRule),
		"benign_rule":     string(verdict.BenignRule),
		"contributing":    len(verdict.Contributing),
	}).Info("Completed evidence combination")

	return verdict
}

// Evaluate merges state and classifies the result.
func (e *ACMGAMPRuleEngine) Evaluate(state *MultiSourceState) ([]domain.EffectiveAssessment, domain.Verdict) {
	effective := EffectiveAll(state)

	conflicts := 0
	for _, ea := range effective {
		if ea.Conflict {
			conflicts++
			e.logger.WithField("criterion", ea.Code.String()).Debug("Automated sources disagree, criterion left unknown")
		}
	}
	if conflicts > 0 {
		e.logger.WithField("conflicts", conflicts).Info("Conflicting automated evidence requires review")
	}

	return effective, e.CombineEvidence(effective)
}
