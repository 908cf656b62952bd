package domain

import (
	"fmt"
	"strings"
)

// CriterionCode identifies one of the 28 ACMG/AMP evidence criteria.
// The set is closed; the numeric order is the canonical display and iteration order.
type CriterionCode uint8

const (
	PVS1 CriterionCode = iota
	PS1
	PS2
	PS3
	PS4
	PM1
	PM2
	PM3
	PM4
	PM5
	PM6
	PP1
	PP2
	PP3
	PP4
	PP5
	BA1
	BS1
	BS2
	BS3
	BS4
	BP1
	BP2
	BP3
	BP4
	BP5
	BP6
	BP7

	criterionCount int = iota
)

// CriterionCount is the number of criteria in the catalog.
const CriterionCount = criterionCount

// Criterion is an immutable catalog entry.
type Criterion struct {
	Code            CriterionCode `json:"code" yaml:"code"`
	Name            string        `json:"name" yaml:"name"`
	Category        RuleCategory  `json:"category" yaml:"category"`
	DefaultStrength RuleStrength  `json:"default_strength" yaml:"default_strength"`
	// Adjustable marks criteria whose strength a clinician may override.
	Adjustable bool `json:"adjustable" yaml:"adjustable"`
}

// catalog is indexed by CriterionCode; its fixed length ties it to the enum above.
var catalog = [criterionCount]Criterion{
	PVS1: {PVS1, "Null variant in a gene where LoF is a known mechanism of disease", PATHOGENIC_RULE, VERY_STRONG, true},

	PS1: {PS1, "Same amino acid change as an established pathogenic variant", PATHOGENIC_RULE, STRONG, false},
	PS2: {PS2, "De novo (maternity and paternity confirmed) in a patient with the disease", PATHOGENIC_RULE, STRONG, true},
	PS3: {PS3, "Well-established functional studies supportive of a damaging effect", PATHOGENIC_RULE, STRONG, true},
	PS4: {PS4, "Prevalence in affected individuals significantly increased over controls", PATHOGENIC_RULE, STRONG, true},

	PM1: {PM1, "Located in a mutational hot spot or well-established functional domain", PATHOGENIC_RULE, MODERATE, false},
	PM2: {PM2, "Absent from controls or at extremely low frequency in population databases", PATHOGENIC_RULE, MODERATE, true},
	PM3: {PM3, "For recessive disorders, detected in trans with a pathogenic variant", PATHOGENIC_RULE, MODERATE, true},
	PM4: {PM4, "Protein length change due to in-frame indels in a non-repeat region or stop-loss", PATHOGENIC_RULE, MODERATE, false},
	PM5: {PM5, "Novel missense change at a residue where a different pathogenic missense change was seen", PATHOGENIC_RULE, MODERATE, false},
	PM6: {PM6, "Assumed de novo, but without confirmation of paternity and maternity", PATHOGENIC_RULE, MODERATE, true},

	PP1: {PP1, "Cosegregation with disease in multiple affected family members", PATHOGENIC_RULE, SUPPORTING, true},
	PP2: {PP2, "Missense variant in a gene with a low rate of benign missense variation", PATHOGENIC_RULE, SUPPORTING, false},
	PP3: {PP3, "Multiple lines of computational evidence support a deleterious effect", PATHOGENIC_RULE, SUPPORTING, true},
	PP4: {PP4, "Patient phenotype or family history highly specific for a single-gene disease", PATHOGENIC_RULE, SUPPORTING, false},
	PP5: {PP5, "Reputable source reports the variant as pathogenic", PATHOGENIC_RULE, SUPPORTING, false},

	BA1: {BA1, "Allele frequency above 5% in population databases", BENIGN_RULE, STAND_ALONE, false},

	BS1: {BS1, "Allele frequency greater than expected for the disorder", BENIGN_RULE, STRONG, false},
	BS2: {BS2, "Observed in a healthy adult for a fully penetrant early-onset disorder", BENIGN_RULE, STRONG, false},
	BS3: {BS3, "Well-established functional studies show no damaging effect", BENIGN_RULE, STRONG, true},
	BS4: {BS4, "Lack of segregation in affected members of a family", BENIGN_RULE, STRONG, true},

	BP1: {BP1, "Missense variant in a gene where primarily truncating variants cause disease", BENIGN_RULE, SUPPORTING, false},
	BP2: {BP2, "Observed in trans with a pathogenic variant for a fully penetrant dominant disorder", BENIGN_RULE, SUPPORTING, false},
	BP3: {BP3, "In-frame indel in a repetitive region without known function", BENIGN_RULE, SUPPORTING, false},
	BP4: {BP4, "Multiple lines of computational evidence suggest no impact", BENIGN_RULE, SUPPORTING, true},
	BP5: {BP5, "Variant found in a case with an alternate molecular basis for disease", BENIGN_RULE, SUPPORTING, false},
	BP6: {BP6, "Reputable source reports the variant as benign", BENIGN_RULE, SUPPORTING, false},
	BP7: {BP7, "Synonymous variant with no predicted impact on splicing", BENIGN_RULE, SUPPORTING, false},
}

var criterionNames = [criterionCount]string{
	"Pvs1",
	"Ps1", "Ps2", "Ps3", "Ps4",
	"Pm1", "Pm2", "Pm3", "Pm4", "Pm5", "Pm6",
	"Pp1", "Pp2", "Pp3", "Pp4", "Pp5",
	"Ba1",
	"Bs1", "Bs2", "Bs3", "Bs4",
	"Bp1", "Bp2", "Bp3", "Bp4", "Bp5", "Bp6", "Bp7",
}

// IsValid reports whether c belongs to the catalog.
func (c CriterionCode) IsValid() bool {
	return int(c) < criterionCount
}

// String returns the canonical code, e.g. "Pvs1".
func (c CriterionCode) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("CriterionCode(%d)", uint8(c))
	}
	return criterionNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c CriterionCode) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCriterion, uint8(c))
	}
	return []byte(criterionNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown codes are an error.
// Input is matched case-insensitively (see ParseCriterionCode); MarshalText always
// writes the canonical form, so canonical codes round-trip byte for byte.
func (c *CriterionCode) UnmarshalText(text []byte) error {
	parsed, err := ParseCriterionCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCriterionCode resolves a code such as "Pm1" or "PM1". Matching ignores case and
// surrounding space, so "pm1" and "PM1" both yield PM1, whose String is "Pm1". Callers that
// echo codes back always get the canonical spelling, not the one they sent.
func ParseCriterionCode(s string) (CriterionCode, error) {
	trimmed := strings.TrimSpace(s)
	for i, name := range criterionNames {
		if strings.EqualFold(name, trimmed) {
			return CriterionCode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
}

// LookupCriterion returns the catalog entry for code.
func LookupCriterion(code CriterionCode) (Criterion, error) {
	if !code.IsValid() {
		return Criterion{}, fmt.Errorf("%w: %d", ErrUnknownCriterion, uint8(code))
	}
	return catalog[code], nil
}

// MustCriterion is LookupCriterion for codes known to be valid, such as the package constants.
func MustCriterion(code CriterionCode) Criterion {
	c, err := LookupCriterion(code)
	if err != nil {
		panic(err)
	}
	return c
}

// AllCriteria returns a copy of the catalog in canonical order.
func AllCriteria() []Criterion {
	out := make([]Criterion, criterionCount)
	copy(out, catalog[:])
	return out
}

// AllCriterionCodes returns every code in canonical order.
func AllCriterionCodes() []CriterionCode {
	out := make([]CriterionCode, criterionCount)
	for i := range out {
		out[i] = CriterionCode(i)
	}
	return out
}

// ResolveStrength returns the strength an assessment resolves to for this criterion.
// Overrides only apply to adjustable criteria; everything else keeps its default.
func (c Criterion) ResolveStrength(override RuleStrength) RuleStrength {
	if override == "" || !c.Adjustable {
		return c.DefaultStrength
	}
	return override
}

// ValidateStrength checks that override may be applied to this criterion.
// An empty override always passes.
func (c Criterion) ValidateStrength(override RuleStrength) error {
	if override == "" || !c.Adjustable {
		return nil
	}
	if !override.AllowedFor(c.Category) {
		return fmt.Errorf("%w: %s cannot be %s evidence for %s", ErrInvalidRuleStrength, override, strings.ToLower(string(c.Category)), c.Code)
	}
	return nil
}
