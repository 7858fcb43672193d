package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/catalog"
	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.LoadDefault()
	require.NoError(t, err)
	return cat
}

func testEnricher(t *testing.T, cat *catalog.Catalog) *triage.Enricher {
	t.Helper()
	return triage.NewEnricher(cat, triage.CycleCalculator{Now: fixedNow, Location: time.UTC}, logging.Default())
}

// scriptedLLM replays canned replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return LLMResponse{}, errors.New("scriptedLLM: no replies left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return LLMResponse{Text: reply}, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) lastRequest() LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type stubConfirmation struct {
	text    string
	err     error
	context string
}

func (s *stubConfirmation) Confirm(_ context.Context, _ []ChatMessage, contextSummary string) (string, error) {
	s.context = contextSummary
	return s.text, s.err
}

type stubSummarizer struct {
	summary triage.HandoffSummary
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(_ context.Context, _ []ChatMessage, _ triage.HandoffPacket) (triage.HandoffSummary, error) {
	s.calls++
	return s.summary, s.err
}

type recordingSink struct {
	mu      sync.Mutex
	results []*TurnResult
}

func (s *recordingSink) RecordTurn(_ context.Context, result *TurnResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func ptr[T any](v T) *T { return &v }
