package domain

import "time"

// Assessment is one source's judgment of one criterion.
// An empty Strength means the criterion's default strength.
type Assessment struct {
	Presence Presence     `json:"presence"`
	Strength RuleStrength `json:"strength,omitempty"`
}

// EffectiveAssessment is the merged judgment for one criterion. It is derived on demand
// and never stored.
type EffectiveAssessment struct {
	Code     CriterionCode `json:"code"`
	Presence Presence      `json:"presence"`
	Strength RuleStrength  `json:"strength"`
	// Source is the source whose judgment won, empty when nothing definite was asserted.
	Source Source `json:"source,omitempty"`
	// Conflict is set when automated sources disagreed and the merge fell back to Unknown.
	Conflict bool `json:"conflict,omitempty"`
}

// Judgment is an assessment attributed to a source, as supplied by annotation services
// or by a reviewer.
type Judgment struct {
	Source   Source        `json:"source"`
	Code     CriterionCode `json:"code"`
	Presence Presence      `json:"presence"`
	Strength RuleStrength  `json:"strength,omitempty"`
}

// CombiningRule names the ACMG/AMP Table 5 rule that produced a call.
type CombiningRule string

const (
	RulePathogenicVeryStrongStrong          CombiningRule = "PATHOGENIC_PVS_PS"
	RulePathogenicVeryStrongModerates       CombiningRule = "PATHOGENIC_PVS_2PM"
	RulePathogenicVeryStrongModerateSupport CombiningRule = "PATHOGENIC_PVS_PM_PP"
	RulePathogenicVeryStrongSupporting      CombiningRule = "PATHOGENIC_PVS_2PP"
	RulePathogenicTwoStrong                 CombiningRule = "PATHOGENIC_2PS"
	RulePathogenicStrongModerates           CombiningRule = "PATHOGENIC_PS_3PM"
	RulePathogenicStrongModeratesSupporting CombiningRule = "PATHOGENIC_PS_2PM_2PP"
	RulePathogenicStrongModerateSupporting  CombiningRule = "PATHOGENIC_PS_PM_4PP"

	RuleLikelyPathogenicVeryStrongModerate CombiningRule = "LIKELY_PATHOGENIC_PVS_PM"
	RuleLikelyPathogenicStrongModerate     CombiningRule = "LIKELY_PATHOGENIC_PS_1-2PM"
	RuleLikelyPathogenicStrongSupporting   CombiningRule = "LIKELY_PATHOGENIC_PS_2PP"
	RuleLikelyPathogenicModerates          CombiningRule = "LIKELY_PATHOGENIC_3PM"
	RuleLikelyPathogenicModeratesSupport   CombiningRule = "LIKELY_PATHOGENIC_2PM_2PP"
	RuleLikelyPathogenicModerateSupporting CombiningRule = "LIKELY_PATHOGENIC_PM_4PP"

	RuleBenignStandAlone CombiningRule = "BENIGN_BA"
	RuleBenignTwoStrong  CombiningRule = "BENIGN_2BS"

	RuleLikelyBenignStrongSupporting CombiningRule = "LIKELY_BENIGN_BS_BP"
	RuleLikelyBenignSupporting       CombiningRule = "LIKELY_BENIGN_2BP"

	RuleConflictingEvidence CombiningRule = "CONFLICTING_EVIDENCE"
	RuleNoRuleMatched       CombiningRule = "NO_RULE_MATCHED"
)

// EvidenceBucket is one (polarity, strength) count class.
type EvidenceBucket string

const (
	BucketPVS EvidenceBucket = "PVS"
	BucketPS  EvidenceBucket = "PS"
	BucketPM  EvidenceBucket = "PM"
	BucketPP  EvidenceBucket = "PP"
	BucketBA  EvidenceBucket = "BA"
	BucketBS  EvidenceBucket = "BS"
	BucketBP  EvidenceBucket = "BP"
)

// BucketFor returns the count class for evidence of the given polarity and strength.
// The second result is false for combinations the guideline does not define.
func BucketFor(category RuleCategory, strength RuleStrength) (EvidenceBucket, bool) {
	switch category {
	case PATHOGENIC_RULE:
		switch strength {
		case VERY_STRONG:
			return BucketPVS, true
		case STRONG:
			return BucketPS, true
		case MODERATE:
			return BucketPM, true
		case SUPPORTING:
			return BucketPP, true
		}
	case BENIGN_RULE:
		switch strength {
		case STAND_ALONE:
			return BucketBA, true
		case STRONG:
			return BucketBS, true
		case SUPPORTING:
			return BucketBP, true
		}
	}
	return "", false
}

// EvidenceCounts holds the number of Present criteria per bucket.
type EvidenceCounts struct {
	PVS int `json:"pvs"`
	PS  int `json:"ps"`
	PM  int `json:"pm"`
	PP  int `json:"pp"`
	BA  int `json:"ba"`
	BS  int `json:"bs"`
	BP  int `json:"bp"`
}

// Add counts one criterion in bucket b. The empty bucket is ignored.
func (c *EvidenceCounts) Add(b EvidenceBucket) {
	switch b {
	case BucketPVS:
		c.PVS++
	case BucketPS:
		c.PS++
	case BucketPM:
		c.PM++
	case BucketPP:
		c.PP++
	case BucketBA:
		c.BA++
	case BucketBS:
		c.BS++
	case BucketBP:
		c.BP++
	}
}

// Verdict is the combined classification plus what justified it.
type Verdict struct {
	Classification Classification `json:"classification"`
	Rule           CombiningRule  `json:"rule"`
	PathogenicRule CombiningRule  `json:"pathogenic_rule,omitempty"`
	BenignRule     CombiningRule  `json:"benign_rule,omitempty"`
	// Contributing lists the criteria counted by the winning rule(s), in catalog order.
	Contributing []CriterionCode `json:"contributing"`
	Counts       EvidenceCounts  `json:"counts"`
	// Significance and ActionRequired restate Classification for clinical reports.
	Significance   string `json:"clinical_significance"`
	ActionRequired bool   `json:"clinical_action_required"`
}

// VerdictRecord is a saved verdict in a variant's history.
type VerdictRecord struct {
	ID             string          `json:"id"`
	Variant        string          `json:"variant"`
	Classification Classification  `json:"classification"`
	Rule           CombiningRule   `json:"rule"`
	Contributing   []CriterionCode `json:"contributing"`
	Comment        string          `json:"comment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
