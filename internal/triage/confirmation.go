package triage

import (
	"strconv"
	"strings"
)

// Fallback patient-facing texts when no generated message is available.
const (
	BookingSubmittedMessage = "Your booking request has been submitted."
	HandoffSubmittedMessage = "Your case has been escalated to our staff."
)

// StaffDirectory resolves staff codes such as "HS" to display names.
type StaffDirectory interface {
	StaffName(code string) string
}

// ConfirmationContext summarizes a booking for the confirmation generator,
// one fact per line. Only facts present in the packet are included.
func ConfirmationContext(p BookingPacket, staff StaffDirectory) string {
	rec := p.Triage
	lang := rec.Language
	if lang == "" {
		lang = "en"
	}
	lines := []string{"Patient language: " + lang}
	if name := deref(rec.PatientName); name != "" {
		lines = append(lines, "Patient name: "+name)
	}
	if phone := deref(rec.PhoneNumber); phone != "" {
		lines = append(lines, "Phone: "+phone)
	}
	if cond := deref(rec.ConditionName); cond != "" {
		lines = append(lines, "Condition: "+cond)
	}
	if code := deref(rec.Doctor); code != "" {
		name := code
		if staff != nil {
			name = staff.StaffName(code)
		}
		lines = append(lines, "Doctor: "+name)
	}
	if p.CycleDependent && p.ValidBookingWindow != nil {
		lines = append(lines, "Timing: "+*p.ValidBookingWindow)
	}
	if p.RecommendInduction {
		lines = append(lines, "A hormone course may be prescribed to induce a period.")
	}
	if p.LabRequired {
		lines = append(lines, "Lab required: "+deref(p.LabDetails))
	}
	if p.Questionnaire != nil {
		lines = append(lines, "Questionnaire to complete: "+*p.Questionnaire)
	}
	if p.PartnerQuestionnaire != nil {
		lines = append(lines, "Partner questionnaire: "+*p.PartnerQuestionnaire)
	}
	if p.GuidanceDocument != nil {
		lines = append(lines, "Guidance document: "+*p.GuidanceDocument)
	}
	if p.SelfPay {
		line := "Self-pay appointment"
		if p.SelfPayPrice != nil {
			line += " (" + strconv.FormatFloat(*p.SelfPayPrice, 'f', -1, 64) + " DKK)"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Write a warm confirmation message for the patient. The clinic will call them to finalize the appointment.")
	return strings.Join(lines, "\n")
}
