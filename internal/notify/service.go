package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// HandoffNotifier emails staff about every escalated intake. It is a
// conversation.ResultSink and ignores bookings and text turns.
type HandoffNotifier struct {
	email  EmailSender
	to     string
	clinic string
	staff  triage.StaffDirectory
	logger *logging.Logger
}

var _ conversation.ResultSink = (*HandoffNotifier)(nil)

func NewHandoffNotifier(email EmailSender, to, clinicName string, staff triage.StaffDirectory, logger *logging.Logger) *HandoffNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffNotifier{
		email:  email,
		to:     strings.TrimSpace(to),
		clinic: strings.TrimSpace(clinicName),
		staff:  staff,
		logger: logger,
	}
}

func (n *HandoffNotifier) RecordTurn(ctx context.Context, result *conversation.TurnResult) error {
	if result == nil || result.Kind != conversation.TurnHandoff || result.Handoff == nil {
		return nil
	}
	if n.email == nil || n.to == "" {
		n.logger.Debug("notify: handoff email not configured, skipping", "session_id", result.SessionID)
		return nil
	}

	msg := EmailMessage{
		To:      n.to,
		Subject: handoffSubject(*result.Handoff, n.clinic),
		Body:    n.handoffBody(result.SessionID, *result.Handoff),
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: handoff email: %w", err)
	}
	return nil
}

func handoffSubject(p triage.HandoffPacket, clinic string) string {
	prefix := ""
	switch p.Urgency {
	case triage.UrgencyImmediate:
		prefix = "[URGENT] "
	case triage.UrgencyHigh:
		prefix = "[High] "
	}
	subject := prefix + "Patient needs staff follow-up: " + p.Reason
	if clinic != "" {
		subject += " (" + clinic + ")"
	}
	return subject
}

func (n *HandoffNotifier) handoffBody(sessionID string, p triage.HandoffPacket) string {
	rec := p.Triage
	var b strings.Builder
	fmt.Fprintf(&b, "Reason: %s\n", p.Reason)
	fmt.Fprintf(&b, "Urgency: %s\n", p.Urgency)
	fmt.Fprintf(&b, "Session: %s\n\n", sessionID)

	writeField(&b, "Patient", rec.PatientName)
	writeField(&b, "Phone", rec.PhoneNumber)
	writeField(&b, "Insurance", rec.InsuranceType)
	writeField(&b, "Condition", rec.ConditionName)
	if rec.Doctor != nil {
		name := *rec.Doctor
		if n.staff != nil {
			name = n.staff.StaffName(name)
		}
		fmt.Fprintf(&b, "Doctor: %s\n", name)
	}
	fmt.Fprintf(&b, "Language: %s\n", rec.Language)

	if s := strings.TrimSpace(p.ConversationSummary); s != "" {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", s)
	}
	if p.SuggestedAction != nil {
		fmt.Fprintf(&b, "\nSuggested action: %s\n", *p.SuggestedAction)
	}
	return b.String()
}

func writeField(b *strings.Builder, label string, v *string) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, *v)
}
