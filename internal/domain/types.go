// Package domain contains core business entities and types for ACMG/AMP variant rating:
// the closed criteria catalog, per-source assessments, merged effective assessments,
// verdicts and the flattened rating record exchanged with persistence.
//
// Reference: Richards et al. (2015) Standards and guidelines for the interpretation of sequence variants.
// Genet Med. 17(5):405-24. doi: 10.1038/gim.2015.30
package domain

import (
	"fmt"
	"strings"
)

// Classification represents the ACMG/AMP classification result for genetic variants.
//
// Reference: ACMG/AMP 2015 Guidelines, Table 5
type Classification string

const (
	PATHOGENIC        Classification = "PATHOGENIC"
	LIKELY_PATHOGENIC Classification = "LIKELY_PATHOGENIC"
	VUS               Classification = "VUS"
	LIKELY_BENIGN     Classification = "LIKELY_BENIGN"
	BENIGN            Classification = "BENIGN"
)

// RuleStrength represents the strength of ACMG/AMP evidence criteria
type RuleStrength string

const (
	VERY_STRONG RuleStrength = "VERY_STRONG"
	STRONG      RuleStrength = "STRONG"
	MODERATE    RuleStrength = "MODERATE"
	SUPPORTING  RuleStrength = "SUPPORTING"
	STAND_ALONE RuleStrength = "STAND_ALONE"
)

// RuleCategory represents the polarity of an ACMG/AMP criterion
type RuleCategory string

const (
	PATHOGENIC_RULE RuleCategory = "PATHOGENIC"
	BENIGN_RULE     RuleCategory = "BENIGN"
)

// IsValid validates that the Classification follows ACMG/AMP guidelines.
func (c Classification) IsValid() bool {
	switch c {
	case PATHOGENIC, LIKELY_PATHOGENIC, VUS, LIKELY_BENIGN, BENIGN:
		return true
	default:
		return false
	}
}

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// ClinicalSignificance returns a human-readable description of the classification
// for clinical reporting.
func (c Classification) ClinicalSignificance() string {
	switch c {
	case PATHOGENIC:
		return "Pathogenic - Disease-causing variant"
	case LIKELY_PATHOGENIC:
		return "Likely Pathogenic - Probably disease-causing variant"
	case VUS:
		return "Variant of Uncertain Significance - Clinical significance unknown"
	case LIKELY_BENIGN:
		return "Likely Benign - Probably not disease-causing"
	case BENIGN:
		return "Benign - Not disease-causing"
	default:
		return "Unknown classification"
	}
}

// RequiresClinicalAction determines if the classification requires clinical follow-up.
func (c Classification) RequiresClinicalAction() bool {
	switch c {
	case PATHOGENIC, LIKELY_PATHOGENIC:
		return true
	case VUS, LIKELY_BENIGN, BENIGN:
		return false
	default:
		return true // Conservative approach for unknown classifications
	}
}

// IsValid validates the rule strength according to ACMG/AMP guidelines.
func (rs RuleStrength) IsValid() bool {
	switch rs {
	case VERY_STRONG, STRONG, MODERATE, SUPPORTING, STAND_ALONE:
		return true
	default:
		return false
	}
}

// AllowedFor reports whether the strength is a tier of the given polarity.
// Benign evidence has no moderate or very strong tier, pathogenic evidence has no stand-alone tier.
func (rs RuleStrength) AllowedFor(category RuleCategory) bool {
	switch category {
	case PATHOGENIC_RULE:
		return rs == VERY_STRONG || rs == STRONG || rs == MODERATE || rs == SUPPORTING
	case BENIGN_RULE:
		return rs == STAND_ALONE || rs == STRONG || rs == SUPPORTING
	default:
		return false
	}
}

// IsValid validates the rule category
func (rc RuleCategory) IsValid() bool {
	switch rc {
	case PATHOGENIC_RULE, BENIGN_RULE:
		return true
	default:
		return false
	}
}

// Presence is the tri-state judgment for a criterion. The zero value is PresenceUnknown.
type Presence uint8

const (
	PresenceUnknown Presence = iota
	PresencePresent
	PresenceAbsent
)

// String returns the wire form of the presence.
func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "Present"
	case PresenceAbsent:
		return "Absent"
	case PresenceUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Presence(%d)", uint8(p))
	}
}

// IsValid reports whether p is one of the three defined values.
func (p Presence) IsValid() bool {
	return p <= PresenceAbsent
}

// IsKnown reports whether p is a definite judgment.
func (p Presence) IsKnown() bool {
	return p == PresencePresent || p == PresenceAbsent
}

// ParsePresence parses the wire form of a presence, case-insensitively.
// An empty string parses as PresenceUnknown.
func ParsePresence(s string) (Presence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return PresencePresent, nil
	case "absent":
		return PresenceAbsent, nil
	case "unknown", "":
		return PresenceUnknown, nil
	default:
		return PresenceUnknown, fmt.Errorf("%w: %q", ErrInvalidPresence, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Presence) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPresence, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Presence) UnmarshalText(text []byte) error {
	parsed, err := ParsePresence(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Source identifies who asserted a judgment.
type Source string

const (
	SourceInterVar Source = "InterVar"
	SourceAutoACMG Source = "AutoACMG"
	SourceAutoPVS1 Source = "AutoPVS1"
	// SourceUser is the manual reviewer. It outranks every automated source.
	SourceUser Source = "User"
)

var automatedSources = []Source{SourceInterVar, SourceAutoACMG, SourceAutoPVS1}

// AutomatedSources returns the automated sources in precedence order.
func AutomatedSources() []Source {
	out := make([]Source, len(automatedSources))
	copy(out, automatedSources)
	return out
}

// AllSources returns every recognized source, manual first.
func AllSources() []Source {
	return append([]Source{SourceUser}, automatedSources...)
}

// IsValid reports whether s is a recognized source.
func (s Source) IsValid() bool {
	return s == SourceUser || s.IsAutomated()
}

// IsAutomated reports whether s is one of the automated prediction sources.
func (s Source) IsAutomated() bool {
	switch s {
	case SourceInterVar, SourceAutoACMG, SourceAutoPVS1:
		return true
	default:
		return false
	}
}

// String returns the source identifier.
func (s Source) String() string {
	return string(s)
}

// ParseSource resolves a source identifier case-insensitively.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources() {
		if strings.EqualFold(string(src), strings.TrimSpace(s)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}
