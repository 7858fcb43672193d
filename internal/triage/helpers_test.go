package triage

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

const testCatalogYAML = `
staff:
  - code: HS
    name: Dr. Skensved
  - code: LB
    name: Dr. Bech
conditions:
  - id: 4
    name: Pregnancy with bleeding or pain
    category: A
    doctor: HS
    duration: 30
  - id: 8
    name: Contraception counselling
    category: C
    doctor: LB
    duration: 20
    questionnaires: [Contraception questionnaire]
    guidance_document: Contraception overview
  - id: 10
    name: IUD insertion
    category: C
    doctor: LB
    duration: 30
    cycle_days: [1, 7]
    lab:
      condition: age_under_30
      test: Chlamydia PCR
      description: Urine sample
  - id: 11
    name: Fertility assessment
    category: C
    doctor: LB
    duration: 45
    cycle_days: [2, 5]
    lab:
      condition: always
      tests: [AMH, FSH]
      description: Blood sample on cycle day 2-5
    questionnaires: [Fertility questionnaire, Lifestyle questionnaire]
    partner_questionnaire: Partner fertility questionnaire
    self_pay_price: 1950.0
  - id: 13
    name: Endometrial biopsy
    category: C
    doctor: HS
    cycle_days: just_before_next_period
  - id: 14
    name: Ovarian cyst follow-up
    category: C
    doctor: HS
    duration: 20
    cycle_days: [5, 10]
    self_pay_price: 950.0
  - id: 15
    name: Premenopausal bleeding disorder
    category: C
    doctor: LB
    routing_question: How old is the patient? Over 45 goes to HS.
    lab:
      condition: age_under_45
      tests: [Hemoglobin]
      description: Blood sample at the GP
`

// today is 2026-03-15 in both UTC and Copenhagen.
var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func testToday() civil.Date { return civil.DateOf(testNow) }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(testCatalogYAML), "test")
	require.NoError(t, err)
	return cat
}

func testCondition(t *testing.T, id int) catalog.Condition {
	t.Helper()
	cond, ok := testCatalog(t).Lookup(id)
	require.True(t, ok, "condition %d missing from test catalog", id)
	return cond
}

func ptr[T any](v T) *T { return &v }
