package conversation

import (
	"context"
	"time"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of a conversation transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLM call purposes, used as metric and log labels.
const (
	PurposeAgent        = "agent"
	PurposeConfirmation = "confirmation"
	PurposeHandoff      = "handoff"
)

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	Purpose     string
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient completes a chat transcript. Implementations own retries and
// provider fallback; callers treat any error as an external call failure.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

type llmObserver interface {
	ObserveLLM(purpose string, failed bool, seconds float64)
}

// InstrumentedLLMClient records latency for every completion.
type InstrumentedLLMClient struct {
	next     LLMClient
	observer llmObserver
}

func NewInstrumentedLLMClient(next LLMClient, observer llmObserver) *InstrumentedLLMClient {
	if next == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &InstrumentedLLMClient{next: next, observer: observer}
}

func (c *InstrumentedLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	if c.observer != nil {
		purpose := req.Purpose
		if purpose == "" {
			purpose = "unknown"
		}
		c.observer.ObserveLLM(purpose, err != nil, time.Since(start).Seconds())
	}
	return resp, err
}
