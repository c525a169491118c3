package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntityMatchTierOneNameAndSecondSignal(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	a := EntityInput{OffenderName: "John Smith", IncidentType: "homicide", State: "TX", Date: now}
	b := EntityInput{OffenderName: "John Smith", IncidentType: "homicide", State: "TX", Date: now}
	isMatch, confidence, reasons := EntityMatch(a, b, DefaultSynonymGroups())
	assert.True(t, isMatch)
	assert.Greater(t, confidence, 0.0)
	assert.NotEmpty(t, reasons)
}

func TestEntityMatchNoSignalsNoMatch(t *testing.T) {
	a := EntityInput{}
	b := EntityInput{}
	isMatch, confidence, _ := EntityMatch(a, b, DefaultSynonymGroups())
	assert.False(t, isMatch)
	assert.Equal(t, 0.0, confidence)
}

func TestEntityMatchDateWindowBoundary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := EntityInput{OffenderName: "Jane Doe", State: "CA", Date: base}
	b := EntityInput{OffenderName: "Jane Doe", State: "CA", Date: base.AddDate(0, 0, 31)}
	isMatch, _, reasons := EntityMatch(a, b, DefaultSynonymGroups())
	assert.True(t, isMatch)
	for _, r := range reasons {
		assert.NotEqual(t, "date within window", r)
	}
}

func TestEntityMatchSymmetric(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := EntityInput{OffenderName: "Maria Lopez", IncidentType: "assault", State: "FL", City: "Miami", Date: now}
	b := EntityInput{OffenderName: "Maria Lopez", IncidentType: "battery", State: "FL", City: "Miami", Date: now.AddDate(0, 0, 2)}
	m1, c1, _ := EntityMatch(a, b, DefaultSynonymGroups())
	m2, c2, _ := EntityMatch(b, a, DefaultSynonymGroups())
	assert.Equal(t, m1, m2)
	assert.InDelta(t, c1, c2, 1e-9)
}

func TestEntityMatchSynonymIncidentType(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := EntityInput{OffenderName: "Tom Lee", IncidentType: "homicide", State: "NY", Date: now}
	b := EntityInput{OffenderName: "Tom Lee", IncidentType: "murder", State: "NY", Date: now}
	isMatch, _, reasons := EntityMatch(a, b, DefaultSynonymGroups())
	assert.True(t, isMatch)
	assert.Contains(t, reasons, "incident type synonym match")
}
