package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalCatalog = `
staff:
  - code: HS
    name: Dr. Skensved
conditions:
  - id: 3
    name: Follow-up scan
    category: c
    doctor: HS
    duration: 20
    cycle_days: [5, 10]
    lab:
      test: Hemoglobin
      description: Blood sample first
    questionnaires: ["  Scan questionnaire ", ""]
    self_pay_price: 950.0
  - id: 1
    name: Urgent bleeding
    category: A
    doctor: HS
  - id: 2
    name: Biopsy
    category: B
    cycle_days: just_before_next_period
    self_pay_price: 0
condition_groups:
  - group: Bleeding
    clarifying_question: Are you pregnant?
    options:
      - label: Yes
        condition_id: 1
`

func TestLoadMinimalCatalog(t *testing.T) {
	cat, err := Load(strings.NewReader(minimalCatalog), "inline")
	require.NoError(t, err)

	assert.Equal(t, "inline", cat.Source())
	assert.Equal(t, 3, cat.Len())

	var ids []int
	for _, c := range cat.Conditions() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{3, 1, 2}, ids, "conditions keep file order")

	scan, ok := cat.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, CategoryStandard, scan.Category)
	require.NotNil(t, scan.Cycle)
	assert.Equal(t, CycleRule{StartDay: 5, EndDay: 10}, *scan.Cycle)
	require.NotNil(t, scan.Lab)
	assert.Equal(t, LabAlways, scan.Lab.Condition, "lab condition defaults to always")
	assert.Equal(t, []string{"Hemoglobin"}, scan.Lab.Tests)
	assert.Equal(t, []string{"Scan questionnaire"}, scan.Questionnaires)
	assert.True(t, scan.HasSelfPayPrice())

	biopsy, ok := cat.Lookup(2)
	require.True(t, ok)
	require.NotNil(t, biopsy.Cycle)
	assert.True(t, biopsy.Cycle.BeforeNextPeriod)
	assert.False(t, biopsy.HasSelfPayPrice(), "zero price means not yet available")

	_, ok = cat.Lookup(99)
	assert.False(t, ok)

	groups := cat.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Are you pregnant?", groups[0].ClarifyingQuestion)
	assert.Equal(t, 1, groups[0].Options[0].ConditionID)

	assert.Equal(t, "Dr. Skensved", cat.StaffName("HS"))
	assert.Equal(t, "LB", cat.StaffName("LB"))
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		wantID int
		want   string
	}{
		{"empty document", "", 0, "empty document"},
		{"malformed yaml", "conditions: [", 0, "yaml"},
		{"unknown field", "conditions:\n  - id: 1\n    name: x\n    category: A\n    colour: red\n", 0, "colour"},
		{"no conditions", "staff: []\n", 0, "no conditions"},
		{"missing id", "conditions:\n  - name: x\n    category: A\n", 0, "missing id"},
		{"negative id", "conditions:\n  - id: -4\n    name: x\n    category: A\n", -4, "positive"},
		{"missing name", "conditions:\n  - id: 1\n    category: A\n", 1, "missing name"},
		{"bad category", "conditions:\n  - id: 1\n    name: x\n    category: D\n", 1, "invalid category"},
		{"reversed cycle days", "conditions:\n  - id: 1\n    name: x\n    category: C\n    cycle_days: [10, 5]\n", 1, "invalid cycle_days"},
		{"zero cycle day", "conditions:\n  - id: 1\n    name: x\n    category: C\n    cycle_days: [0, 5]\n", 1, "invalid cycle_days"},
		{"cycle triple", "conditions:\n  - id: 1\n    name: x\n    category: C\n    cycle_days: [1, 2, 3]\n", 0, "exactly two"},
		{"unknown marker", "conditions:\n  - id: 1\n    name: x\n    category: C\n    cycle_days: after_period\n", 0, "unknown cycle_days marker"},
		{"bad lab kind", "conditions:\n  - id: 1\n    name: x\n    category: C\n    lab:\n      condition: age_under_99\n", 1, "invalid lab condition"},
		{"negative price", "conditions:\n  - id: 1\n    name: x\n    category: C\n    self_pay_price: -1\n", 1, "negative self_pay_price"},
		{"unknown group option", "conditions:\n  - id: 1\n    name: x\n    category: C\ncondition_groups:\n  - group: g\n    clarifying_question: q\n    options:\n      - label: l\n        condition_id: 7\n", 7, "unknown condition"},
		{"staff without code", "conditions:\n  - id: 1\n    name: x\n    category: C\nstaff:\n  - name: Dr. Nobody\n", 0, "without a code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Load(strings.NewReader(tt.doc), "test.yaml")
			require.Error(t, err)
			assert.Nil(t, cat)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %T", err)
			assert.Equal(t, "test.yaml", cfgErr.Source)
			assert.Equal(t, tt.wantID, cfgErr.ConditionID)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	doc := "conditions:\n  - id: 8\n    name: a\n    category: C\n  - id: 8\n    name: b\n    category: C\n"
	_, err := Load(strings.NewReader(doc), "dup.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 8, cfgErr.ConditionID)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o600))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cat.Source())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFileEmptyPathUsesDefault(t *testing.T) {
	cat, err := LoadFile("  ")
	require.NoError(t, err)
	assert.Equal(t, "embedded:conditions.yaml", cat.Source())
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := LoadDefault()
	require.NoError(t, err)

	for _, id := range []int{4, 7, 8, 15, 20, 21, 29, 30, 52} {
		_, ok := cat.Lookup(id)
		assert.True(t, ok, "condition %d should be present", id)
	}

	pregnancy, _ := cat.Lookup(4)
	assert.Equal(t, CategoryUrgent, pregnancy.Category)

	postmenopausal, _ := cat.Lookup(7)
	assert.Equal(t, CategorySemiUrgent, postmenopausal.Category)

	contraception, _ := cat.Lookup(8)
	assert.Equal(t, "LB", contraception.Doctor)
	assert.Nil(t, contraception.Cycle)
	assert.False(t, contraception.HasSelfPayPrice())

	for _, c := range cat.Conditions() {
		assert.NotEmpty(t, cat.StaffName(c.Doctor), "condition %d", c.ID)
		assert.NotEqual(t, c.Doctor, cat.StaffName(c.Doctor), "condition %d has no staff display name", c.ID)
	}
}

func TestReference(t *testing.T) {
	cat, err := Load(strings.NewReader(minimalCatalog), "inline")
	require.NoError(t, err)

	ref := cat.Reference()
	assert.True(t, strings.HasPrefix(ref, "=== CONDITION REFERENCE ==="))
	assert.Contains(t, ref, "[1] Urgent bleeding: Urgent bleeding")
	assert.Contains(t, ref, `Ask: "Are you pregnant?"`)
	assert.Contains(t, ref, "- Yes -> condition [1]")

	a := strings.Index(ref, "CATEGORY A")
	b := strings.Index(ref, "CATEGORY B")
	c := strings.Index(ref, "CATEGORY C")
	assert.True(t, a < b && b < c, "categories are listed A, B, C")
	assert.True(t, strings.Index(ref, "[1]") < b, "category A entries precede category B")
	assert.True(t, strings.Index(ref, "[3]") > c, "category C entries follow the C heading")

	var nilCat *Catalog
	assert.Empty(t, nilCat.Reference())
}

func TestCycleRuleJSON(t *testing.T) {
	pair, err := json.Marshal(CycleRule{StartDay: 5, EndDay: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `[5,10]`, string(pair))

	marker, err := json.Marshal(CycleRule{BeforeNextPeriod: true})
	require.NoError(t, err)
	assert.JSONEq(t, `"just_before_next_period"`, string(marker))
}
