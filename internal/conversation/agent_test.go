package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/triage"
)

type countingRejections struct {
	missing []string
}

func (c *countingRejections) ObserveRejection(missing string) {
	c.missing = append(c.missing, missing)
}

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantTool string
		wantOK   bool
	}{
		{name: "plain text", reply: "Hello! Do you have public health insurance?"},
		{name: "envelope", reply: `{"tool":"fetch_condition_details","arguments":{"condition_id":8}}`, wantTool: "fetch_condition_details", wantOK: true},
		{name: "fenced", reply: "```json\n{\"tool\":\"complete_triage\",\"arguments\":{}}\n```", wantTool: "complete_triage", wantOK: true},
		{name: "missing tool", reply: `{"arguments":{}}`},
		{name: "trailing text", reply: `{"tool":"complete_triage","arguments":{}} thanks`},
		{name: "broken json", reply: `{"tool": "complete_triage", "arguments": {`},
		{name: "json in prose", reply: `Sure: {"tool":"complete_triage"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseToolCall(tt.reply)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTool, call.Tool)
		})
	}
}

func TestAgentReturnsPlainText(t *testing.T) {
	cat := defaultCatalog(t)
	llm := &scriptedLLM{replies: []string{"Hi! Do you have public health insurance (the yellow card)?"}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{ClinicName: "Test Clinic", Now: fixedNow}, nil)

	res, err := agent.Advance(context.Background(), nil, "hello", triage.Gate{Catalog: cat})
	require.NoError(t, err)

	assert.Equal(t, "Hi! Do you have public health insurance (the yellow card)?", res.Text)
	assert.Nil(t, res.Intake)
	assert.Equal(t, 1, res.Steps)
	require.Len(t, res.Transcript, 2)
	assert.Equal(t, ChatMessage{Role: ChatRoleUser, Content: "hello"}, res.Transcript[0])
	assert.Equal(t, ChatRoleAssistant, res.Transcript[1].Role)

	req := llm.lastRequest()
	assert.Equal(t, PurposeAgent, req.Purpose)
	require.Len(t, req.System, 1)
	assert.Contains(t, req.System[0], "Test Clinic")
	assert.Contains(t, req.System[0], "=== CONDITION REFERENCE ===")
	assert.Contains(t, req.System[0], "(2026-03-15)")
}

func TestAgentFetchesConditionDetails(t *testing.T) {
	cat := defaultCatalog(t)
	llm := &scriptedLLM{replies: []string{
		`{"tool":"fetch_condition_details","arguments":{"condition_id":8}}`,
		"Thanks. Dr. Bech will see you for contraception counselling.",
	}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil)

	res, err := agent.Advance(context.Background(), nil, "I need advice on contraception", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Steps)
	require.NotNil(t, res.Partial)
	assert.Equal(t, 8, *res.Partial.ConditionID)
	assert.Equal(t, "LB", *res.Partial.Doctor)
	assert.Equal(t, "Contraception counselling", *res.Partial.ConditionName)

	// user, tool call, tool result, final text
	require.Len(t, res.Transcript, 4)
	toolMsg := res.Transcript[2]
	assert.Equal(t, ChatRoleUser, toolMsg.Role)
	assert.True(t, strings.HasPrefix(toolMsg.Content, "[tool result] fetch_condition_details:"))
	assert.Contains(t, toolMsg.Content, `"Contraception questionnaire"`)

	// the second call sees the tool result
	second := llm.lastRequest()
	assert.Equal(t, toolMsg, second.Messages[len(second.Messages)-1])
}

func TestAgentFetchUnknownCondition(t *testing.T) {
	cat := defaultCatalog(t)
	llm := &scriptedLLM{replies: []string{
		`{"tool":"fetch_condition_details","arguments":{"condition_id":999}}`,
		"Could you describe that a bit more?",
	}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil)

	res, err := agent.Advance(context.Background(), nil, "something odd", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Partial)
	assert.Contains(t, res.Transcript[2].Content, `Condition 999 not found`)
}

func TestAgentRetriesRejectedSubmission(t *testing.T) {
	cat := defaultCatalog(t)
	rejections := &countingRejections{}
	llm := &scriptedLLM{replies: []string{
		`{"tool":"complete_triage","arguments":{"language":"en","condition_id":8}}`,
		`{"tool":"complete_triage","arguments":{"language":"en","condition_id":8,"doctor":"LB","has_referral":true}}`,
	}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil, WithRejectionObserver(rejections))

	res, err := agent.Advance(context.Background(), nil, "yes that's all", triage.Gate{Catalog: cat})
	require.NoError(t, err)

	require.NotNil(t, res.Intake)
	assert.Equal(t, "LB", *res.Intake.Doctor)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, []string{"doctor"}, rejections.missing)

	feedback := res.Transcript[2].Content
	assert.Contains(t, feedback, "[tool result] complete_triage:")
	assert.Contains(t, feedback, `"LB"`)
}

func TestAgentFeedsBackUndecodableArguments(t *testing.T) {
	cat := defaultCatalog(t)
	llm := &scriptedLLM{replies: []string{
		`{"tool":"complete_triage","arguments":{"condition_id":"eight"}}`,
		`{"tool":"complete_triage","arguments":{"escalate":true,"escalation_reason":"Patient requested staff"}}`,
	}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil)

	res, err := agent.Advance(context.Background(), nil, "can I talk to a person", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Intake)
	assert.True(t, res.Intake.Escalate)
	assert.Equal(t, "en", res.Intake.Language)
	assert.Contains(t, res.Transcript[2].Content, "could not be decoded")
}

func TestAgentUnknownTool(t *testing.T) {
	cat := defaultCatalog(t)
	llm := &scriptedLLM{replies: []string{
		`{"tool":"book_appointment","arguments":{}}`,
		"Let me continue with a few questions.",
	}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil)

	res, err := agent.Advance(context.Background(), nil, "book me", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Transcript[2].Content, `unknown tool "book_appointment"`)
	assert.Equal(t, "Let me continue with a few questions.", res.Text)
}

func TestAgentStepBudget(t *testing.T) {
	cat := defaultCatalog(t)
	reject := `{"tool":"complete_triage","arguments":{"language":"en"}}`
	llm := &scriptedLLM{replies: []string{reject, reject, reject, reject}}
	agent := NewLLMAgent(llm, cat, PromptBuilder{Now: fixedNow}, nil, WithMaxSteps(3))

	res, err := agent.Advance(context.Background(), nil, "done", nil)
	require.ErrorIs(t, err, ErrAgentStepsExhausted)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, 3, llm.calls())
}
