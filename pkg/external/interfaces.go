package external

import (
	"fmt"
	"strings"
	"time"

	"github.com/acmg-amp-rating/internal/domain"
)

// ServiceType names a remote service for logging and breaker statistics.
type ServiceType string

const (
	ServiceTypeRatingBackend ServiceType = "RatingBackend"
	ServiceTypeInterVar      ServiceType = "InterVar"
	ServiceTypeAutoACMG      ServiceType = "AutoACMG"
	ServiceTypeAutoPVS1      ServiceType = "AutoPVS1"
)

var predictionServices = map[domain.Source]ServiceType{
	domain.SourceInterVar: ServiceTypeInterVar,
	domain.SourceAutoACMG: ServiceTypeAutoACMG,
	domain.SourceAutoPVS1: ServiceTypeAutoPVS1,
}

// ServiceHealth represents the health status of external services
type ServiceHealth struct {
	Service             ServiceType `json:"service"`
	Healthy             bool        `json:"healthy"`
	State               string      `json:"state"`
	Requests            uint32      `json:"requests"`
	TotalFailures       uint32      `json:"total_failures"`
	ConsecutiveFailures uint32      `json:"consecutive_failures"`
	LastCheck           time.Time   `json:"last_check"`
	Error               string      `json:"error,omitempty"`
}

// wireCriterion is one criterion as exchanged with the rating backend and the prediction
// services: {"criteria": "Pm1", "presence": "Present", "evidence": "Pathogenic Moderate"}.
type wireCriterion struct {
	Criteria string `json:"criteria"`
	Presence string `json:"presence"`
	Evidence string `json:"evidence,omitempty"`
}

// wireRating is the rating record body of the rating backend.
type wireRating struct {
	Comment   string          `json:"comment"`
	Criterias []wireCriterion `json:"criterias"`
}

// wireListedRating is one entry of the backend list endpoint.
type wireListedRating struct {
	Seqvar   string `json:"seqvar,omitempty"`
	Strucvar string `json:"strucvar,omitempty"`
	wireRating
}

var strengthLabels = map[domain.RuleStrength]string{
	domain.VERY_STRONG: "Very Strong",
	domain.STRONG:      "Strong",
	domain.MODERATE:    "Moderate",
	domain.SUPPORTING:  "Supporting",
	domain.STAND_ALONE: "Standalone",
}

// evidenceLabel renders the polarity and strength of code, e.g. "Benign Strong".
func evidenceLabel(crit domain.Criterion, strength domain.RuleStrength) string {
	polarity := "Pathogenic"
	if crit.Category == domain.BENIGN_RULE {
		polarity = "Benign"
	}
	return polarity + " " + strengthLabels[crit.ResolveStrength(strength)]
}

// parseEvidence extracts the strength from an evidence label. The polarity must match the
// criterion. An empty label means the default strength.
func parseEvidence(crit domain.Criterion, label string) (domain.RuleStrength, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", nil
	}
	polarity, tier, ok := strings.Cut(label, " ")
	if !ok {
		return "", fmt.Errorf("%w: evidence %q", domain.ErrInvalidRuleStrength, label)
	}
	if !strings.EqualFold(polarity, string(crit.Category)) {
		return "", fmt.Errorf("%w: evidence %q does not match %s criterion %s",
			domain.ErrInvalidRuleStrength, label, strings.ToLower(string(crit.Category)), crit.Code)
	}
	for strength, name := range strengthLabels {
		if strings.EqualFold(name, strings.TrimSpace(tier)) ||
			strings.EqualFold(strings.ReplaceAll(name, " ", ""), strings.ReplaceAll(tier, " ", "")) {
			if strength == crit.DefaultStrength {
				return "", nil
			}
			return strength, nil
		}
	}
	return "", fmt.Errorf("%w: evidence %q", domain.ErrInvalidRuleStrength, label)
}

func encodeCriterion(rc domain.RatingCriterion) (wireCriterion, error) {
	crit, err := domain.LookupCriterion(rc.Code)
	if err != nil {
		return wireCriterion{}, err
	}
	return wireCriterion{
		Criteria: crit.Code.String(),
		Presence: rc.Presence.String(),
		Evidence: evidenceLabel(crit, rc.Strength),
	}, nil
}

func decodeCriterion(wc wireCriterion) (domain.RatingCriterion, error) {
	code, err := domain.ParseCriterionCode(wc.Criteria)
	if err != nil {
		return domain.RatingCriterion{}, err
	}
	presence, err := domain.ParsePresence(wc.Presence)
	if err != nil {
		return domain.RatingCriterion{}, fmt.Errorf("%s: %w", code, err)
	}
	crit := domain.MustCriterion(code)
	strength, err := parseEvidence(crit, wc.Evidence)
	if err != nil {
		return domain.RatingCriterion{}, err
	}
	if !crit.Adjustable {
		strength = ""
	}
	return domain.RatingCriterion{Code: code, Presence: presence, Strength: strength}, nil
}

func encodeRating(record *domain.RatingRecord) (*wireRating, error) {
	out := &wireRating{Comment: record.Comment, Criterias: make([]wireCriterion, 0, len(record.Criteria))}
	for _, rc := range record.Criteria {
		wc, err := encodeCriterion(rc)
		if err != nil {
			return nil, err
		}
		out.Criterias = append(out.Criterias, wc)
	}
	return out, nil
}

func decodeRating(in *wireRating) (*domain.RatingRecord, error) {
	record := &domain.RatingRecord{Comment: in.Comment, Criteria: make([]domain.RatingCriterion, 0, len(in.Criterias))}
	for _, wc := range in.Criterias {
		rc, err := decodeCriterion(wc)
		if err != nil {
			return nil, err
		}
		record.Criteria = append(record.Criteria, rc)
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}
