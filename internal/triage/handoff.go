package triage

import (
	"strings"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

// HandoffSummary is what the external summarizer adds to a handoff.
type HandoffSummary struct {
	Summary         string  `json:"conversation_summary"`
	SuggestedAction string  `json:"suggested_action"`
	Urgency         Urgency `json:"urgency"`
}

// BuildHandoff packages an escalating record for staff. Reason and urgency are
// deterministic; the summary is filled in later by ApplySummary.
func BuildHandoff(rec IntakeRecord) HandoffPacket {
	return HandoffPacket{
		Triage:  rec,
		Reason:  HandoffReason(rec),
		Urgency: DefaultUrgency(rec),
	}
}

// HandoffReason prefers the agent's own reason and otherwise names the
// signal that escalated the record.
func HandoffReason(rec IntakeRecord) string {
	if rec.EscalationReason != nil && strings.TrimSpace(*rec.EscalationReason) != "" {
		return strings.TrimSpace(*rec.EscalationReason)
	}
	if rec.Category != nil && *rec.Category == catalog.CategoryUrgent {
		return "Category A urgent condition"
	}
	if rec.InsuranceType != nil && *rec.InsuranceType == InsuranceDSS {
		return "DSS/private insurance"
	}
	return "Escalated by intake agent"
}

// DefaultUrgency is immediate for category A and normal for everything else.
// High is never chosen here.
func DefaultUrgency(rec IntakeRecord) Urgency {
	if rec.Category != nil && *rec.Category == catalog.CategoryUrgent {
		return UrgencyImmediate
	}
	return UrgencyNormal
}

// ApplySummary merges summarizer output into p. The summarizer may raise a
// normal handoff to high but never lowers an immediate one, and it cannot
// change the reason.
func ApplySummary(p HandoffPacket, s HandoffSummary) HandoffPacket {
	out := p
	out.ConversationSummary = strings.TrimSpace(s.Summary)
	if action := strings.TrimSpace(s.SuggestedAction); action != "" {
		out.SuggestedAction = &action
	}
	if out.Urgency == UrgencyNormal && s.Urgency == UrgencyHigh {
		out.Urgency = UrgencyHigh
	}
	return out
}
