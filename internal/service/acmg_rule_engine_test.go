package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmg-amp-rating/internal/domain"
)

// present builds a full effective set in which only codes are Present.
func present(codes ...domain.CriterionCode) []domain.EffectiveAssessment {
	state := NewMultiSourceState()
	for _, c := range codes {
		if err := state.SetAssessment(c, domain.SourceUser, domain.PresencePresent, ""); err != nil {
			panic(err)
		}
	}
	return EffectiveAll(state)
}

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		codes          []domain.CriterionCode
		classification domain.Classification
		rule           domain.CombiningRule
		contributing   []domain.CriterionCode
	}{
		{
			name:           "very strong alone",
			codes:          []domain.CriterionCode{domain.PVS1},
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
		{
			name:           "very strong plus strong",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PS1},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicVeryStrongStrong,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PS1},
		},
		{
			name:           "three moderate",
			codes:          []domain.CriterionCode{domain.PM1, domain.PM2, domain.PM4},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicModerates,
			contributing:   []domain.CriterionCode{domain.PM1, domain.PM2, domain.PM4},
		},
		{
			name:           "stand-alone benign",
			codes:          []domain.CriterionCode{domain.BA1},
			classification: domain.BENIGN,
			rule:           domain.RuleBenignStandAlone,
			contributing:   []domain.CriterionCode{domain.BA1},
		},
		{
			name:           "stand-alone benign with supporting pathogenic",
			codes:          []domain.CriterionCode{domain.PP1, domain.PP3, domain.BA1},
			classification: domain.BENIGN,
			rule:           domain.RuleBenignStandAlone,
			contributing:   []domain.CriterionCode{domain.BA1},
		},
		{
			name:           "stand-alone benign against pathogenic",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PS1, domain.BA1},
			classification: domain.VUS,
			rule:           domain.RuleConflictingEvidence,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PS1, domain.BA1},
		},
		{
			name:           "nothing present",
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
		{
			name:           "two strong",
			codes:          []domain.CriterionCode{domain.PS3, domain.PS4, domain.PP1},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicTwoStrong,
			contributing:   []domain.CriterionCode{domain.PS3, domain.PS4},
		},
		{
			name:           "two benign strong",
			codes:          []domain.CriterionCode{domain.BS1, domain.BS2, domain.BP1},
			classification: domain.BENIGN,
			rule:           domain.RuleBenignTwoStrong,
			contributing:   []domain.CriterionCode{domain.BS1, domain.BS2},
		},
		{
			name:           "benign strong with supporting",
			codes:          []domain.CriterionCode{domain.BS1, domain.BP4},
			classification: domain.LIKELY_BENIGN,
			rule:           domain.RuleLikelyBenignStrongSupporting,
			contributing:   []domain.CriterionCode{domain.BS1, domain.BP4},
		},
		{
			name:           "two benign supporting",
			codes:          []domain.CriterionCode{domain.BP6, domain.BP1},
			classification: domain.LIKELY_BENIGN,
			rule:           domain.RuleLikelyBenignSupporting,
			contributing:   []domain.CriterionCode{domain.BP1, domain.BP6},
		},
		{
			name:           "very strong plus moderate",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PM2},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicVeryStrongModerate,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PM2},
		},
		{
			name:           "very strong plus moderate and supporting",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PM2, domain.PP3},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicVeryStrongModerateSupport,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PM2, domain.PP3},
		},
		{
			name:           "strong plus one moderate",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM5},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicStrongModerate,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM5},
		},
		{
			name:           "strong plus three moderate",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2, domain.PM5},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicStrongModerates,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2, domain.PM5},
		},
		{
			name:           "moderate plus four supporting",
			codes:          []domain.CriterionCode{domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicModerateSupporting,
			contributing:   []domain.CriterionCode{domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
		},
		{
			name:           "likely pathogenic against likely benign",
			codes:          []domain.CriterionCode{domain.PM1, domain.PM2, domain.PM4, domain.BP1, domain.BP7},
			classification: domain.VUS,
			rule:           domain.RuleConflictingEvidence,
			contributing:   []domain.CriterionCode{domain.PM1, domain.PM2, domain.PM4, domain.BP1, domain.BP7},
		},
		{
			name:           "very strong plus two moderate",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PM1, domain.PM2},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicVeryStrongModerates,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PM1, domain.PM2},
		},
		{
			name:           "very strong plus two supporting",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PP1, domain.PP3},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicVeryStrongSupporting,
			contributing:   []domain.CriterionCode{domain.PVS1, domain.PP1, domain.PP3},
		},
		{
			name:           "very strong plus one supporting",
			codes:          []domain.CriterionCode{domain.PVS1, domain.PP1},
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
		{
			name:           "strong plus two moderate and two supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2, domain.PP1, domain.PP2},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicStrongModeratesSupporting,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2, domain.PP1, domain.PP2},
		},
		{
			name:           "strong plus two moderate and one supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2, domain.PP1},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicStrongModerate,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM1, domain.PM2},
		},
		{
			name:           "strong plus moderate and four supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
			classification: domain.PATHOGENIC,
			rule:           domain.RulePathogenicStrongModerateSupporting,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
		},
		{
			name:           "strong plus moderate and three supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PM1, domain.PP1, domain.PP2, domain.PP3},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicStrongModerate,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PM1},
		},
		{
			name:           "strong plus two supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PP1, domain.PP2},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicStrongSupporting,
			contributing:   []domain.CriterionCode{domain.PS1, domain.PP1, domain.PP2},
		},
		{
			name:           "strong plus one supporting",
			codes:          []domain.CriterionCode{domain.PS1, domain.PP1},
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
		{
			name:           "two moderate and two supporting",
			codes:          []domain.CriterionCode{domain.PM1, domain.PM2, domain.PP1, domain.PP2},
			classification: domain.LIKELY_PATHOGENIC,
			rule:           domain.RuleLikelyPathogenicModeratesSupport,
			contributing:   []domain.CriterionCode{domain.PM1, domain.PM2, domain.PP1, domain.PP2},
		},
		{
			name:           "two moderate and one supporting",
			codes:          []domain.CriterionCode{domain.PM1, domain.PM2, domain.PP1},
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
		{
			name:           "supporting only",
			codes:          []domain.CriterionCode{domain.PP1, domain.PP2, domain.PP3, domain.PP4, domain.PP5},
			classification: domain.VUS,
			rule:           domain.RuleNoRuleMatched,
			contributing:   []domain.CriterionCode{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := Classify(present(tt.codes...))
			assert.Equal(t, tt.classification, verdict.Classification)
			assert.Equal(t, tt.rule, verdict.Rule)
			assert.Equal(t, tt.contributing, verdict.Contributing)
			assert.Equal(t, tt.classification.ClinicalSignificance(), verdict.Significance)
			assert.Equal(t, tt.classification.RequiresClinicalAction(), verdict.ActionRequired)
		})
	}
}

func TestClassify_EveryRuleReachable(t *testing.T) {
	seen := make(map[domain.CombiningRule]bool)
	for _, rule := range append(append([]combiningRule{}, pathogenicRules...), benignRules...) {
		seen[rule.ID] = false
	}
	for _, codes := range [][]domain.CriterionCode{
		{domain.PVS1, domain.PS1},
		{domain.PVS1, domain.PM1, domain.PM2},
		{domain.PVS1, domain.PM2, domain.PP3},
		{domain.PVS1, domain.PP1, domain.PP3},
		{domain.PS3, domain.PS4},
		{domain.PS1, domain.PM1, domain.PM2, domain.PM5},
		{domain.PS1, domain.PM1, domain.PM2, domain.PP1, domain.PP2},
		{domain.PS1, domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
		{domain.PVS1, domain.PM2},
		{domain.PS1, domain.PM5},
		{domain.PS1, domain.PP1, domain.PP2},
		{domain.PM1, domain.PM2, domain.PM4},
		{domain.PM1, domain.PM2, domain.PP1, domain.PP2},
		{domain.PM1, domain.PP1, domain.PP2, domain.PP3, domain.PP4},
		{domain.BA1},
		{domain.BS1, domain.BS2},
		{domain.BS1, domain.BP4},
		{domain.BP1, domain.BP6},
	} {
		seen[Classify(present(codes...)).Rule] = true
	}
	for id, hit := range seen {
		assert.True(t, hit, "rule %s never matched", id)
	}
}

func TestClassify_ConflictCarriesBothRules(t *testing.T) {
	verdict := Classify(present(domain.PVS1, domain.PS1, domain.BA1))
	assert.Equal(t, domain.RulePathogenicVeryStrongStrong, verdict.PathogenicRule)
	assert.Equal(t, domain.RuleBenignStandAlone, verdict.BenignRule)
	assert.Equal(t, domain.EvidenceCounts{PVS: 1, PS: 1, BA: 1}, verdict.Counts)
}

func TestClassify_UnknownAndAbsentNeverCount(t *testing.T) {
	state := NewMultiSourceState()
	require.NoError(t, state.SetAssessment(domain.PVS1, domain.SourceUser, domain.PresenceAbsent, ""))
	require.NoError(t, state.SetAssessment(domain.PS1, domain.SourceInterVar, domain.PresencePresent, ""))
	require.NoError(t, state.SetAssessment(domain.PS1, domain.SourceAutoACMG, domain.PresenceAbsent, ""))
	require.NoError(t, state.SetAssessment(domain.PS2, domain.SourceUser, domain.PresencePresent, ""))

	verdict := Classify(EffectiveAll(state))
	assert.Equal(t, domain.EvidenceCounts{PS: 1}, verdict.Counts)
	assert.Equal(t, domain.VUS, verdict.Classification)
}

func TestClassify_StrengthOverrideMovesBucket(t *testing.T) {
	state := NewMultiSourceState()
	require.NoError(t, state.SetAssessment(domain.PVS1, domain.SourceUser, domain.PresencePresent, domain.STRONG))
	require.NoError(t, state.SetAssessment(domain.PS3, domain.SourceUser, domain.PresencePresent, ""))

	verdict := Classify(EffectiveAll(state))
	assert.Equal(t, domain.EvidenceCounts{PS: 2}, verdict.Counts)
	assert.Equal(t, domain.PATHOGENIC, verdict.Classification)
	assert.Equal(t, domain.RulePathogenicTwoStrong, verdict.Rule)
	assert.Equal(t, []domain.CriterionCode{domain.PVS1, domain.PS3}, verdict.Contributing)
}

func TestClassify_Deterministic(t *testing.T) {
	input := present(domain.PM2, domain.PP3, domain.PS3, domain.BP4)
	first := Classify(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(input))
	}

	// input order does not matter
	reversed := make([]domain.EffectiveAssessment, len(input))
	for i := range input {
		reversed[len(input)-1-i] = input[i]
	}
	assert.Equal(t, first, Classify(reversed))
}

func TestClassify_IgnoresMalformedEntries(t *testing.T) {
	verdict := Classify([]domain.EffectiveAssessment{
		{Code: domain.CriterionCode(200), Presence: domain.PresencePresent},
		{Code: domain.BA1, Presence: domain.PresencePresent},
	})
	assert.Equal(t, domain.BENIGN, verdict.Classification)
	assert.Equal(t, []domain.CriterionCode{domain.BA1}, verdict.Contributing)
}

func TestCombiningRules(t *testing.T) {
	rules := CombiningRules()
	require.Len(t, rules, 18)
	assert.Equal(t, domain.RulePathogenicVeryStrongStrong, rules[0].ID)
	assert.Equal(t, domain.RuleLikelyBenignSupporting, rules[len(rules)-1].ID)

	// a copy
	rules[0].Reads[0] = domain.BucketBP
	assert.Equal(t, domain.BucketPVS, CombiningRules()[0].Reads[0])
}

func TestACMGAMPRuleEngine_Evaluate(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	engine := NewACMGAMPRuleEngine(logger)

	state := NewMultiSourceState()
	require.NoError(t, state.SetAssessment(domain.PM1, domain.SourceInterVar, domain.PresencePresent, ""))
	require.NoError(t, state.SetAssessment(domain.PM1, domain.SourceAutoACMG, domain.PresenceAbsent, ""))
	require.NoError(t, state.SetAssessment(domain.BA1, domain.SourceAutoACMG, domain.PresencePresent, ""))

	effective, verdict := engine.Evaluate(state)
	require.Len(t, effective, domain.CriterionCount)
	assert.True(t, effective[domain.PM1].Conflict)
	assert.Equal(t, domain.BENIGN, verdict.Classification)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "Completed evidence combination", last.Message)
	assert.Equal(t, "BENIGN", last.Data["classification"])

	var sawConflict bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Conflicting automated evidence requires review" {
			sawConflict = true
			assert.Equal(t, 1, e.Data["conflicts"])
		}
	}
	assert.True(t, sawConflict)
}
