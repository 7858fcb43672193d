package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/gyn-triage/internal/triage"
)

// ConfirmationGenerator writes the patient-facing message for a finished
// booking from the conversation and a one-fact-per-line context summary.
type ConfirmationGenerator interface {
	Confirm(ctx context.Context, history []ChatMessage, contextSummary string) (string, error)
}

// HandoffSummarizer condenses an escalated conversation for staff.
type HandoffSummarizer interface {
	Summarize(ctx context.Context, history []ChatMessage, packet triage.HandoffPacket) (triage.HandoffSummary, error)
}

const confirmationInstructions = `You write the final message of a gynecology clinic's intake chat.
Reply in the patient's language. Thank the patient, restate what happens next using only the facts
given, and say the clinic will call to finalize the appointment. Never claim the appointment is booked.
No lists, no markdown, at most five sentences.`

const handoffInstructions = `You summarize an escalated gynecology intake conversation for clinic staff.
Reply with a single JSON object and nothing else:
{"conversation_summary": "<2-4 sentences in English>", "suggested_action": "<one sentence>", "urgency": "immediate|high|normal"}
Use "high" for semi-urgent cases that should be handled today; keep "immediate" for emergencies.`

// LLMConfirmationGenerator asks the LLM for a confirmation message.
type LLMConfirmationGenerator struct {
	llm   LLMClient
	model string
}

func NewLLMConfirmationGenerator(llm LLMClient, model string) *LLMConfirmationGenerator {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMConfirmationGenerator{llm: llm, model: strings.TrimSpace(model)}
}

func (g *LLMConfirmationGenerator) Confirm(ctx context.Context, history []ChatMessage, contextSummary string) (string, error) {
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: "[booking details]\n" + contextSummary})

	resp, err := g.llm.Complete(ctx, LLMRequest{
		Model:       g.model,
		System:      []string{confirmationInstructions},
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: 0.4,
		Purpose:     PurposeConfirmation,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: confirmation: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return triage.BookingSubmittedMessage, nil
	}
	return text, nil
}

// LLMHandoffSummarizer asks the LLM for a structured staff summary.
type LLMHandoffSummarizer struct {
	llm   LLMClient
	model string
}

func NewLLMHandoffSummarizer(llm LLMClient, model string) *LLMHandoffSummarizer {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMHandoffSummarizer{llm: llm, model: strings.TrimSpace(model)}
}

func (s *LLMHandoffSummarizer) Summarize(ctx context.Context, history []ChatMessage, packet triage.HandoffPacket) (triage.HandoffSummary, error) {
	var transcript strings.Builder
	for _, msg := range history {
		if strings.HasPrefix(msg.Content, toolResultPrefix) {
			continue
		}
		if _, isTool := parseToolCall(msg.Content); isTool {
			continue
		}
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}
	prompt := fmt.Sprintf("Escalation reason: %s\nDefault urgency: %s\n\nConversation:\n%s",
		packet.Reason, packet.Urgency, transcript.String())

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model:       s.model,
		System:      []string{handoffInstructions},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   512,
		Temperature: 0,
		Purpose:     PurposeHandoff,
	})
	if err != nil {
		return triage.HandoffSummary{}, fmt.Errorf("conversation: handoff summary: %w", err)
	}
	return parseHandoffSummary(resp.Text), nil
}

// parseHandoffSummary accepts the JSON object the summarizer was asked for
// and falls back to using the raw text as the summary.
func parseHandoffSummary(text string) triage.HandoffSummary {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSpace(strings.TrimSuffix(body, "```"))

	var summary triage.HandoffSummary
	if err := json.Unmarshal([]byte(body), &summary); err == nil && strings.TrimSpace(summary.Summary) != "" {
		summary.Urgency = triage.Urgency(strings.ToLower(strings.TrimSpace(string(summary.Urgency))))
		return summary
	}
	return triage.HandoffSummary{Summary: strings.TrimSpace(text)}
}
