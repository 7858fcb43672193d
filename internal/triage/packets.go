package triage

// BookingPacket is what the clinic needs to call a patient back and book her.
// It is built once per completed, non-escalating conversation.
type BookingPacket struct {
	Triage IntakeRecord `json:"triage"`

	CycleDependent     bool    `json:"cycle_dependent"`
	ValidBookingWindow *string `json:"valid_booking_window"`
	RecommendInduction bool    `json:"recommend_induction"`

	LabRequired bool    `json:"lab_required"`
	LabDetails  *string `json:"lab_details"`

	Questionnaire        *string `json:"questionnaire"`
	PartnerQuestionnaire *string `json:"partner_questionnaire"`
	GuidanceDocument     *string `json:"guidance_document"`

	SelfPay      bool     `json:"self_pay"`
	SelfPayPrice *float64 `json:"self_pay_price"`

	Notes *string `json:"notes"`
}

// Urgency ranks a handoff for staff.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	// UrgencyHigh is only ever set by the handoff summarizer.
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
)

// HandoffPacket routes a conversation to human staff.
type HandoffPacket struct {
	Triage              IntakeRecord `json:"triage"`
	Reason              string       `json:"reason"`
	Urgency             Urgency      `json:"urgency"`
	ConversationSummary string       `json:"conversation_summary"`
	SuggestedAction     *string      `json:"suggested_action"`
}
