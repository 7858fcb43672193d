// Package triage is the deterministic half of the intake pipeline. It decides
// whether a finished intake record is accepted, whether it goes to staff or to
// automated booking, and what a booking needs (cycle window, labs,
// questionnaires, self-pay). Nothing here performs I/O; every function is safe
// to call from any goroutine once the catalog is loaded.
package triage

import (
	"strings"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

// Insurance types the intake agent can report.
const (
	InsurancePublic = "public"
	InsuranceDSS    = "dss"
)

// DefaultCycleLength is assumed when the patient does not know her cycle length.
const DefaultCycleLength = 28

// IntakeRecord is everything the intake agent gathered from one conversation.
// Optional values are pointers so "not asked" stays distinct from a zero value.
type IntakeRecord struct {
	Language         string  `json:"language"`
	Escalate         bool    `json:"escalate"`
	EscalationReason *string `json:"escalation_reason"`

	PatientName   *string `json:"patient_name"`
	PhoneNumber   *string `json:"phone_number"`
	InsuranceType *string `json:"insurance_type"`
	HasReferral   *bool   `json:"has_referral"`
	IsFollowup    bool    `json:"is_followup"`

	ConditionID     *int              `json:"condition_id"`
	ConditionName   *string           `json:"condition_name"`
	Category        *catalog.Category `json:"category"`
	Doctor          *string           `json:"doctor"`
	DurationMinutes *int              `json:"duration_minutes"`
	PriorityWindow  *string           `json:"priority_window"`
	PatientAge      *int              `json:"patient_age"`

	LastPeriodDate *civil.Date `json:"last_period_date"`
	CycleLength    *int        `json:"cycle_length"`
	NoPeriods      bool        `json:"no_periods"`
}

// Normalize fills the defaults a submission may leave out and trims string
// fields. It returns a copy; r is not modified.
func (r IntakeRecord) Normalize() IntakeRecord {
	out := r
	out.Language = strings.TrimSpace(out.Language)
	if out.Language == "" {
		out.Language = "en"
	}
	out.EscalationReason = trimmed(out.EscalationReason)
	out.PatientName = trimmed(out.PatientName)
	out.PhoneNumber = trimmed(out.PhoneNumber)
	out.ConditionName = trimmed(out.ConditionName)
	out.Doctor = trimmed(out.Doctor)
	out.PriorityWindow = trimmed(out.PriorityWindow)
	if out.InsuranceType != nil {
		v := strings.ToLower(strings.TrimSpace(*out.InsuranceType))
		if v == "" {
			out.InsuranceType = nil
		} else {
			out.InsuranceType = &v
		}
	}
	if out.Category != nil {
		v := catalog.Category(strings.ToUpper(strings.TrimSpace(string(*out.Category))))
		if v == "" {
			out.Category = nil
		} else {
			out.Category = &v
		}
	}
	return out
}

// CycleLengthOrDefault returns the reported cycle length, or 28 days.
func (r IntakeRecord) CycleLengthOrDefault() int {
	if r.CycleLength == nil || *r.CycleLength <= 0 {
		return DefaultCycleLength
	}
	return *r.CycleLength
}

// ApplyCondition copies routing metadata from a catalog entry into the fields
// the agent has not set yet. The agent's own values (for example a doctor
// chosen by a routing question) win.
func (r IntakeRecord) ApplyCondition(cond catalog.Condition) IntakeRecord {
	out := r
	if out.ConditionID == nil {
		id := cond.ID
		out.ConditionID = &id
	}
	if out.ConditionName == nil {
		name := cond.Name
		out.ConditionName = &name
	}
	if out.Category == nil {
		category := cond.Category
		out.Category = &category
	}
	if out.Doctor == nil && cond.Doctor != "" {
		doctor := cond.Doctor
		out.Doctor = &doctor
	}
	if out.DurationMinutes == nil && cond.Duration > 0 {
		duration := cond.Duration
		out.DurationMinutes = &duration
	}
	if out.PriorityWindow == nil && cond.PriorityWindow != "" {
		window := cond.PriorityWindow
		out.PriorityWindow = &window
	}
	return out
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
