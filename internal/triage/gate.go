package triage

import (
	"fmt"
	"strings"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

// GateState is where a conversation's data collection stands.
type GateState string

const (
	GateIncomplete GateState = "incomplete"
	GateTerminal   GateState = "terminal"
)

// MissingField names the field a rejected submission lacked.
type MissingField string

const (
	MissingCondition MissingField = "condition_id"
	MissingDoctor    MissingField = "doctor"
)

// ValidationRejection is returned for a terminal submission that cannot be
// accepted yet. Instruction is corrective context for the intake agent and is
// never shown to the patient.
type ValidationRejection struct {
	Missing     MissingField
	Instruction string
}

func (r *ValidationRejection) Error() string {
	return fmt.Sprintf("triage: submission rejected: missing %s", r.Missing)
}

// SubmissionValidator accepts or rejects a terminal submission.
type SubmissionValidator interface {
	Validate(rec IntakeRecord) error
}

// GateDecision is the result of evaluating one submission.
type GateDecision struct {
	State     GateState
	Rejection *ValidationRejection
}

// Accepted reports whether the conversation's data collection is finished.
func (d GateDecision) Accepted() bool {
	return d.State == GateTerminal
}

// Gate guards the move from an ongoing conversation to a finished intake. The
// catalog is optional and only sharpens the doctor instruction.
type Gate struct {
	Catalog *catalog.Catalog
}

// Evaluate accepts rec when it escalates, or when it names both a condition
// and a doctor.
func (g Gate) Evaluate(rec IntakeRecord) GateDecision {
	if rec.Escalate {
		return GateDecision{State: GateTerminal}
	}
	if rec.ConditionID == nil {
		return GateDecision{State: GateIncomplete, Rejection: &ValidationRejection{
			Missing: MissingCondition,
			Instruction: "ERROR: condition_id is required for non-escalation bookings. " +
				"Identify the condition from the CONDITION REFERENCE, call fetch_condition_details to get its routing info, " +
				"and do not call complete_triage again until you have a condition_id.",
		}}
	}
	if rec.Doctor == nil || strings.TrimSpace(*rec.Doctor) == "" {
		return GateDecision{State: GateIncomplete, Rejection: &ValidationRejection{
			Missing:     MissingDoctor,
			Instruction: g.doctorInstruction(*rec.ConditionID),
		}}
	}
	return GateDecision{State: GateTerminal}
}

// Validate is Evaluate shaped as a SubmissionValidator.
func (g Gate) Validate(rec IntakeRecord) error {
	if d := g.Evaluate(rec); !d.Accepted() {
		return d.Rejection
	}
	return nil
}

func (g Gate) doctorInstruction(conditionID int) string {
	const prefix = "ERROR: doctor is required. "
	cond, ok := g.Catalog.Lookup(conditionID)
	switch {
	case ok && cond.RoutingQuestion != "":
		return prefix + fmt.Sprintf("Condition [%d] has a routing question. Ask the patient first, then set doctor from the answer: %s",
			conditionID, cond.RoutingQuestion)
	case ok && cond.Doctor != "":
		return prefix + fmt.Sprintf("Condition [%d] has no routing question; use its default doctor %q.", conditionID, cond.Doctor)
	default:
		return prefix + fmt.Sprintf("Call fetch_condition_details(%d) to get the default doctor. "+
			"If the condition has a routing_question, ask it first to determine the correct doctor.", conditionID)
	}
}
