package triage

import "github.com/wolfman30/gyn-triage/internal/catalog"

// EscalationSignal names which input sent a record to staff.
type EscalationSignal string

const (
	SignalNone           EscalationSignal = ""
	SignalExplicit       EscalationSignal = "escalate_flag"
	SignalDSSInsurance   EscalationSignal = "dss_insurance"
	SignalUrgentCategory EscalationSignal = "category_a"
)

// Escalation is the classifier's verdict. Signal is diagnostic only.
type Escalation struct {
	Escalate bool
	Signal   EscalationSignal
}

// Classify ORs the three escalation signals. Signal reports the first one that
// fired, checked in the order flag, insurance, category.
func Classify(rec IntakeRecord) Escalation {
	switch {
	case rec.Escalate:
		return Escalation{Escalate: true, Signal: SignalExplicit}
	case rec.InsuranceType != nil && *rec.InsuranceType == InsuranceDSS:
		return Escalation{Escalate: true, Signal: SignalDSSInsurance}
	case rec.Category != nil && *rec.Category == catalog.CategoryUrgent:
		return Escalation{Escalate: true, Signal: SignalUrgentCategory}
	}
	return Escalation{}
}

// IsEscalation reports whether rec goes to staff instead of booking.
func IsEscalation(rec IntakeRecord) bool {
	return Classify(rec).Escalate
}
