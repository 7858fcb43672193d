package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/gyn-triage/internal/catalog"
	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

const (
	defaultAgentSteps = 5
	toolResultPrefix  = "[tool result]"
)

// ErrAgentStepsExhausted is returned when the agent used its whole step
// budget without producing a reply or an accepted submission.
var ErrAgentStepsExhausted = errors.New("conversation: agent step budget exhausted")

// AgentResult is the outcome of advancing a conversation by one user message.
// Exactly one of Text and Intake is set on success.
type AgentResult struct {
	Text   string
	Intake *triage.IntakeRecord
	// Transcript holds the messages to append to the session history,
	// starting with the user's message.
	Transcript []ChatMessage
	// Partial carries routing fields learned from condition lookups, for live
	// UI updates before the intake is complete.
	Partial *triage.IntakeRecord
	Steps   int
}

// Agent is the conversational collaborator: given the history and a new
// message it produces either text for the patient or an intake submission
// that v accepted. Rejected submissions are retried inside Advance.
type Agent interface {
	Advance(ctx context.Context, history []ChatMessage, message string, v triage.SubmissionValidator) (AgentResult, error)
}

type rejectionObserver interface {
	ObserveRejection(missing string)
}

// LLMAgent drives the intake conversation with an LLM that speaks a small
// JSON tool protocol.
type LLMAgent struct {
	llm      LLMClient
	catalog  *catalog.Catalog
	prompt   PromptBuilder
	maxSteps int
	model    string
	logger   *logging.Logger
	observer rejectionObserver
}

// AgentOption configures an LLMAgent.
type AgentOption func(*LLMAgent)

// WithMaxSteps bounds the LLM calls per user message.
func WithMaxSteps(steps int) AgentOption {
	return func(a *LLMAgent) {
		if steps > 0 {
			a.maxSteps = steps
		}
	}
}

// WithAgentModel overrides the provider's default model.
func WithAgentModel(model string) AgentOption {
	return func(a *LLMAgent) {
		a.model = strings.TrimSpace(model)
	}
}

// WithRejectionObserver counts submissions sent back by the gate.
func WithRejectionObserver(o rejectionObserver) AgentOption {
	return func(a *LLMAgent) {
		a.observer = o
	}
}

func NewLLMAgent(llm LLMClient, cat *catalog.Catalog, prompt PromptBuilder, logger *logging.Logger, opts ...AgentOption) *LLMAgent {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if cat == nil {
		panic("conversation: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if prompt.Catalog == nil {
		prompt.Catalog = cat
	}
	a := &LLMAgent{
		llm:      llm,
		catalog:  cat,
		prompt:   prompt,
		maxSteps: defaultAgentSteps,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LLMAgent) Advance(ctx context.Context, history []ChatMessage, message string, v triage.SubmissionValidator) (AgentResult, error) {
	if v == nil {
		v = triage.Gate{Catalog: a.catalog}
	}
	system := a.prompt.System()
	result := AgentResult{
		Transcript: []ChatMessage{{Role: ChatRoleUser, Content: message}},
	}

	for result.Steps < a.maxSteps {
		result.Steps++

		msgs := make([]ChatMessage, 0, len(history)+len(result.Transcript))
		msgs = append(msgs, history...)
		msgs = append(msgs, result.Transcript...)
		resp, err := a.llm.Complete(ctx, LLMRequest{
			Model:       a.model,
			System:      []string{system},
			Messages:    msgs,
			MaxTokens:   1024,
			Temperature: 0.2,
			Purpose:     PurposeAgent,
		})
		if err != nil {
			return result, err
		}

		reply := strings.TrimSpace(resp.Text)
		call, ok := parseToolCall(reply)
		if !ok {
			result.Text = reply
			result.Transcript = append(result.Transcript, ChatMessage{Role: ChatRoleAssistant, Content: reply})
			return result, nil
		}
		result.Transcript = append(result.Transcript, ChatMessage{Role: ChatRoleAssistant, Content: reply})

		switch call.Tool {
		case toolFetchConditionDetails:
			result.Transcript = append(result.Transcript, a.fetchConditionDetails(call.Arguments, &result))

		case toolCompleteTriage:
			rec, feedback := a.submit(call.Arguments, v)
			if feedback != "" {
				result.Transcript = append(result.Transcript, toolResult(toolCompleteTriage, feedback))
				continue
			}
			result.Intake = &rec
			return result, nil

		default:
			result.Transcript = append(result.Transcript, toolResult(call.Tool,
				fmt.Sprintf("ERROR: unknown tool %q. Available tools: %s, %s.", call.Tool, toolFetchConditionDetails, toolCompleteTriage)))
		}
	}

	a.logger.Warn("intake agent ran out of steps", "steps", result.Steps)
	return result, ErrAgentStepsExhausted
}

func (a *LLMAgent) fetchConditionDetails(args json.RawMessage, result *AgentResult) ChatMessage {
	var req struct {
		ConditionID int `json:"condition_id"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return toolResult(toolFetchConditionDetails, fmt.Sprintf(`{"error": %q}`, "condition_id must be an integer"))
	}
	cond, ok := a.catalog.Lookup(req.ConditionID)
	if !ok {
		return toolResult(toolFetchConditionDetails, fmt.Sprintf(`{"error": "Condition %d not found"}`, req.ConditionID))
	}

	var partial triage.IntakeRecord
	if result.Partial != nil {
		partial = *result.Partial
	}
	partial.ConditionID, partial.ConditionName, partial.Category = nil, nil, nil
	partial.Doctor, partial.DurationMinutes, partial.PriorityWindow = nil, nil, nil
	partial = partial.ApplyCondition(cond)
	result.Partial = &partial

	body, err := json.Marshal(cond)
	if err != nil {
		return toolResult(toolFetchConditionDetails, fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return toolResult(toolFetchConditionDetails, string(body))
}

// submit decodes and validates a complete_triage call. A non-empty feedback
// string is the correction to send back to the model.
func (a *LLMAgent) submit(args json.RawMessage, v triage.SubmissionValidator) (triage.IntakeRecord, string) {
	var rec triage.IntakeRecord
	if err := json.Unmarshal(args, &rec); err != nil {
		return triage.IntakeRecord{}, fmt.Sprintf("ERROR: the arguments could not be decoded (%v). Send the intake fields again as JSON.", err)
	}
	rec = rec.Normalize()

	if err := v.Validate(rec); err != nil {
		var rejection *triage.ValidationRejection
		if !errors.As(err, &rejection) {
			return triage.IntakeRecord{}, "ERROR: " + err.Error()
		}
		a.logger.Info("intake submission rejected", "missing", string(rejection.Missing))
		if a.observer != nil {
			a.observer.ObserveRejection(string(rejection.Missing))
		}
		return triage.IntakeRecord{}, rejection.Instruction
	}
	return rec, ""
}

type toolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCall recognises a reply that is exactly one tool envelope,
// optionally wrapped in a markdown code fence. Anything else is text.
func parseToolCall(reply string) (toolCall, bool) {
	body := strings.TrimSpace(reply)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}
	if !strings.HasPrefix(body, "{") {
		return toolCall{}, false
	}

	var call toolCall
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&call); err != nil {
		return toolCall{}, false
	}
	if dec.More() {
		return toolCall{}, false
	}
	call.Tool = strings.TrimSpace(call.Tool)
	if call.Tool == "" {
		return toolCall{}, false
	}
	if len(bytes.TrimSpace(call.Arguments)) == 0 || bytes.Equal(bytes.TrimSpace(call.Arguments), []byte("null")) {
		call.Arguments = json.RawMessage("{}")
	}
	return call, true
}

func toolResult(tool, body string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: fmt.Sprintf("%s %s: %s", toolResultPrefix, tool, body)}
}
