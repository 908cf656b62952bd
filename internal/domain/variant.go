package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GenomeRelease is the reference assembly a variant is described on.
type GenomeRelease string

const (
	GRCh37 GenomeRelease = "grch37"
	GRCh38 GenomeRelease = "grch38"
)

// VariantKind distinguishes sequence variants from structural variants.
type VariantKind string

const (
	SEQUENCE_VARIANT   VariantKind = "SEQVAR"
	STRUCTURAL_VARIANT VariantKind = "STRUCVAR"
)

// StrucvarType is the structural variant class.
type StrucvarType string

const (
	DELETION    StrucvarType = "DEL"
	DUPLICATION StrucvarType = "DUP"
)

var (
	chromPattern  = regexp.MustCompile(`^(?:[1-9]|1[0-9]|2[0-2]|X|Y|MT)$`)
	allelePattern = regexp.MustCompile(`^[ACGTN]+$`)
)

// VariantID is a canonical, already resolved variant identifier.
//
// Sequence variants render as {release}-{chrom}-{pos}-{ref}-{alt}, structural variants as
// {DEL|DUP}-{release}-{chrom}-{start}-{stop}.
type VariantID struct {
	Kind    VariantKind   `json:"kind"`
	Release GenomeRelease `json:"release"`
	Chrom   string        `json:"chrom"`
	// Pos is the 1-based position for sequence variants and the start for structural ones.
	Pos  int64        `json:"pos"`
	Stop int64        `json:"stop,omitempty"`
	Ref  string       `json:"ref,omitempty"`
	Alt  string       `json:"alt,omitempty"`
	SV   StrucvarType `json:"sv_type,omitempty"`
}

// ParseVariantID parses a canonical identifier. Release and chromosome are normalized
// (lower-case release, no "chr" prefix, "M" becomes "MT").
func ParseVariantID(s string) (VariantID, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 5 {
		return VariantID{}, fmt.Errorf("%w: %q: expected 5 dash-separated fields", ErrInvalidVariant, s)
	}

	if sv := StrucvarType(strings.ToUpper(parts[0])); sv == DELETION || sv == DUPLICATION {
		release, err := parseRelease(parts[1])
		if err != nil {
			return VariantID{}, fmt.Errorf("%w: %q", err, s)
		}
		chrom, err := parseChrom(parts[2])
		if err != nil {
			return VariantID{}, fmt.Errorf("%w: %q", err, s)
		}
		start, err := parsePosition(parts[3])
		if err != nil {
			return VariantID{}, fmt.Errorf("%w: %q", err, s)
		}
		stop, err := parsePosition(parts[4])
		if err != nil {
			return VariantID{}, fmt.Errorf("%w: %q", err, s)
		}
		if stop < start {
			return VariantID{}, fmt.Errorf("%w: %q: stop before start", ErrInvalidVariant, s)
		}
		return VariantID{Kind: STRUCTURAL_VARIANT, SV: sv, Release: release, Chrom: chrom, Pos: start, Stop: stop}, nil
	}

	release, err := parseRelease(parts[0])
	if err != nil {
		return VariantID{}, fmt.Errorf("%w: %q", err, s)
	}
	chrom, err := parseChrom(parts[1])
	if err != nil {
		return VariantID{}, fmt.Errorf("%w: %q", err, s)
	}
	pos, err := parsePosition(parts[2])
	if err != nil {
		return VariantID{}, fmt.Errorf("%w: %q", err, s)
	}
	ref, alt := strings.ToUpper(parts[3]), strings.ToUpper(parts[4])
	if !allelePattern.MatchString(ref) || !allelePattern.MatchString(alt) {
		return VariantID{}, fmt.Errorf("%w: %q: alleles must be nucleotides", ErrInvalidVariant, s)
	}
	return VariantID{Kind: SEQUENCE_VARIANT, Release: release, Chrom: chrom, Pos: pos, Ref: ref, Alt: alt}, nil
}

// String renders the canonical identifier.
func (v VariantID) String() string {
	if v.Kind == STRUCTURAL_VARIANT {
		return fmt.Sprintf("%s-%s-%s-%d-%d", v.SV, v.Release, v.Chrom, v.Pos, v.Stop)
	}
	return fmt.Sprintf("%s-%s-%d-%s-%s", v.Release, v.Chrom, v.Pos, v.Ref, v.Alt)
}

// CanonicalVariant parses s and returns its normalized rendering.
func CanonicalVariant(s string) (string, error) {
	v, err := ParseVariantID(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func parseRelease(s string) (GenomeRelease, error) {
	switch r := GenomeRelease(strings.ToLower(s)); r {
	case GRCh37, GRCh38:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unsupported genome release %q", ErrInvalidVariant, s)
	}
}

func parseChrom(s string) (string, error) {
	c := strings.ToUpper(s)
	c = strings.TrimPrefix(c, "CHR")
	if c == "M" {
		c = "MT"
	}
	if !chromPattern.MatchString(c) {
		return "", fmt.Errorf("%w: invalid chromosome %q", ErrInvalidVariant, s)
	}
	return c, nil
}

func parsePosition(s string) (int64, error) {
	pos, err := strconv.ParseInt(s, 10, 64)
	if err != nil || pos < 1 {
		return 0, fmt.Errorf("%w: invalid position %q", ErrInvalidVariant, s)
	}
	return pos, nil
}
