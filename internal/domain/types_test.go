package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Classification
		expected string
	}{
		{"Pathogenic", PATHOGENIC, "PATHOGENIC"},
		{"Likely Pathogenic", LIKELY_PATHOGENIC, "LIKELY_PATHOGENIC"},
		{"VUS", VUS, "VUS"},
		{"Likely Benign", LIKELY_BENIGN, "LIKELY_BENIGN"},
		{"Benign", BENIGN, "BENIGN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if Classification("MAYBE").IsValid() {
		t.Error("Expected unknown classification to be invalid")
	}
}

func TestClassificationClinicalReporting(t *testing.T) {
	tests := []struct {
		value        Classification
		significance string
		action       bool
	}{
		{PATHOGENIC, "Pathogenic - Disease-causing variant", true},
		{LIKELY_PATHOGENIC, "Likely Pathogenic - Probably disease-causing variant", true},
		{VUS, "Variant of Uncertain Significance - Clinical significance unknown", false},
		{LIKELY_BENIGN, "Likely Benign - Probably not disease-causing", false},
		{BENIGN, "Benign - Not disease-causing", false},
		{Classification("MAYBE"), "Unknown classification", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.significance, tt.value.ClinicalSignificance())
			assert.Equal(t, tt.action, tt.value.RequiresClinicalAction())
		})
	}
}

func TestRuleStrengthAllowedFor(t *testing.T) {
	tests := []struct {
		strength   RuleStrength
		pathogenic bool
		benign     bool
	}{
		{VERY_STRONG, true, false},
		{STRONG, true, true},
		{MODERATE, true, false},
		{SUPPORTING, true, true},
		{STAND_ALONE, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strength), func(t *testing.T) {
			assert.Equal(t, tt.pathogenic, tt.strength.AllowedFor(PATHOGENIC_RULE))
			assert.Equal(t, tt.benign, tt.strength.AllowedFor(BENIGN_RULE))
		})
	}
}

func TestPresenceZeroValueIsUnknown(t *testing.T) {
	var p Presence
	assert.Equal(t, PresenceUnknown, p)
	assert.False(t, p.IsKnown())
	assert.True(t, PresencePresent.IsKnown())
	assert.True(t, PresenceAbsent.IsKnown())
	assert.False(t, Presence(7).IsValid())
}

func TestParsePresence(t *testing.T) {
	tests := []struct {
		input    string
		expected Presence
		wantErr  bool
	}{
		{"Present", PresencePresent, false},
		{"absent", PresenceAbsent, false},
		{"UNKNOWN", PresenceUnknown, false},
		{"", PresenceUnknown, false},
		{"maybe", PresenceUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePresence(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPresence)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPresenceJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Presence{"a": PresencePresent, "b": PresenceUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"Present","b":"Unknown"}`, string(data))

	var p Presence
	require.NoError(t, json.Unmarshal([]byte(`"Absent"`), &p))
	assert.Equal(t, PresenceAbsent, p)
}

func TestSources(t *testing.T) {
	assert.Equal(t, []Source{SourceInterVar, SourceAutoACMG, SourceAutoPVS1}, AutomatedSources())
	assert.Equal(t, SourceUser, AllSources()[0])
	assert.True(t, SourceUser.IsValid())
	assert.False(t, SourceUser.IsAutomated())
	assert.True(t, SourceAutoPVS1.IsAutomated())

	src, err := ParseSource("intervar")
	require.NoError(t, err)
	assert.Equal(t, SourceInterVar, src)

	_, err = ParseSource("ClinVar")
	assert.ErrorIs(t, err, ErrUnknownSource)

	// callers must not be able to reorder precedence
	s := AutomatedSources()
	s[0] = SourceAutoPVS1
	assert.Equal(t, SourceInterVar, AutomatedSources()[0])
}

func TestBucketFor(t *testing.T) {
	b, ok := BucketFor(PATHOGENIC_RULE, MODERATE)
	assert.True(t, ok)
	assert.Equal(t, BucketPM, b)

	b, ok = BucketFor(BENIGN_RULE, STAND_ALONE)
	assert.True(t, ok)
	assert.Equal(t, BucketBA, b)

	_, ok = BucketFor(BENIGN_RULE, MODERATE)
	assert.False(t, ok)
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrUnknownCriterion))
	assert.True(t, IsValidationError(NewValidationError("comment", "too long", nil)))
	assert.False(t, IsValidationError(ErrNotFound))
	assert.False(t, IsValidationError(NewPersistenceError("fetch", "grch37-1-1-A-G", 500, assert.AnError)))
}

func TestPersistenceError(t *testing.T) {
	err := NewPersistenceError("update", "grch37-17-43044295-G-A", 500, assert.AnError)
	assert.Contains(t, err.Error(), "status 500")
	assert.ErrorIs(t, err, assert.AnError)
}
