package triage

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

func TestIntakeRecordDecodesSubmission(t *testing.T) {
	raw := `{
		"language": "da",
		"escalate": false,
		"patient_name": "Maria",
		"insurance_type": "public",
		"has_referral": false,
		"condition_id": 14,
		"category": "C",
		"doctor": "HS",
		"last_period_date": "2026-03-02",
		"cycle_length": 30,
		"unknown_extra": "ignored"
	}`

	var rec IntakeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, "da", rec.Language)
	require.NotNil(t, rec.HasReferral)
	assert.False(t, *rec.HasReferral)
	assert.Equal(t, 14, *rec.ConditionID)
	assert.Equal(t, catalog.CategoryStandard, *rec.Category)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.March, Day: 2}, *rec.LastPeriodDate)
	assert.Equal(t, 30, rec.CycleLengthOrDefault())
	assert.Nil(t, rec.PatientAge)
}

func TestIntakeRecordRejectsBadDate(t *testing.T) {
	var rec IntakeRecord
	assert.Error(t, json.Unmarshal([]byte(`{"last_period_date": "last tuesday"}`), &rec))
}

func TestNormalize(t *testing.T) {
	rec := IntakeRecord{
		PatientName:   ptr("  Maria "),
		Doctor:        ptr(" "),
		InsuranceType: ptr(" DSS "),
		Category:      ptr(catalog.Category("a")),
	}

	got := rec.Normalize()

	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "Maria", *got.PatientName)
	assert.Nil(t, got.Doctor)
	assert.Equal(t, InsuranceDSS, *got.InsuranceType)
	assert.Equal(t, catalog.CategoryUrgent, *got.Category)
	assert.True(t, IsEscalation(got))
	assert.Equal(t, "  Maria ", *rec.PatientName, "original record is untouched")
}

func TestCycleLengthOrDefault(t *testing.T) {
	assert.Equal(t, 28, IntakeRecord{}.CycleLengthOrDefault())
	assert.Equal(t, 28, IntakeRecord{CycleLength: ptr(0)}.CycleLengthOrDefault())
	assert.Equal(t, 32, IntakeRecord{CycleLength: ptr(32)}.CycleLengthOrDefault())
}

func TestApplyConditionKeepsAgentValues(t *testing.T) {
	cond := testCondition(t, 15)

	filled := IntakeRecord{}.ApplyCondition(cond)
	assert.Equal(t, 15, *filled.ConditionID)
	assert.Equal(t, "Premenopausal bleeding disorder", *filled.ConditionName)
	assert.Equal(t, catalog.CategoryStandard, *filled.Category)
	assert.Equal(t, "LB", *filled.Doctor)
	assert.Nil(t, filled.DurationMinutes, "condition 15 has no duration in the test catalog")

	routed := IntakeRecord{Doctor: ptr("HS")}.ApplyCondition(cond)
	assert.Equal(t, "HS", *routed.Doctor)
}
