package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// TurnKind tags what a turn produced.
type TurnKind string

const (
	TurnText    TurnKind = "text"
	TurnBooking TurnKind = "booking"
	TurnHandoff TurnKind = "handoff"
)

// TurnResult is the outcome of one user message. Content is the text to show
// the patient: the agent's reply, or the confirmation for a finished intake.
type TurnResult struct {
	SessionID string                `json:"session_id"`
	Kind      TurnKind              `json:"kind"`
	Content   string                `json:"content"`
	Intake    *triage.IntakeRecord  `json:"intake,omitempty"`
	Booking   *triage.BookingPacket `json:"booking,omitempty"`
	Handoff   *triage.HandoffPacket `json:"handoff,omitempty"`
	// Partial is set on text turns when the agent resolved a condition.
	Partial *triage.IntakeRecord `json:"partial,omitempty"`
}

// Terminal reports whether the turn ended the intake.
func (r *TurnResult) Terminal() bool {
	return r != nil && (r.Kind == TurnBooking || r.Kind == TurnHandoff)
}

// ErrExternalCall wraps failures of the agent, confirmation or summary calls.
// The session is left untouched so the same message can be sent again.
var ErrExternalCall = errors.New("conversation: external call failed")

const apologyMessage = "Sorry, something went wrong on our side. Please send your message again."

// ApologyResult is the generic turn transports show when RunTurn fails.
func ApologyResult(sessionID string) *TurnResult {
	return &TurnResult{SessionID: sessionID, Kind: TurnText, Content: apologyMessage}
}

// TurnRunner runs one conversation turn. The Orchestrator and the queue
// Dispatcher both implement it.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID, message string) (*TurnResult, error)
}

// ResultSink receives every successful turn after the history was saved.
type ResultSink interface {
	RecordTurn(ctx context.Context, result *TurnResult) error
}

type turnObserver interface {
	ObserveTurn(kind string, failed bool, seconds float64)
	ObserveHandoff(urgency string)
}

// OrchestratorConfig carries the collaborators of the turn orchestrator.
// Agent, History and Enricher are required.
type OrchestratorConfig struct {
	Agent        Agent
	History      HistoryStore
	Enricher     *triage.Enricher
	Validator    triage.SubmissionValidator
	Staff        triage.StaffDirectory
	Confirmation ConfirmationGenerator
	Summarizer   HandoffSummarizer
	Sinks        []ResultSink
	Locks        *SessionLocks
	Metrics      turnObserver
	Tracer       trace.Tracer
	TurnTimeout  time.Duration
	Logger       *logging.Logger
}

// Orchestrator sequences a turn: agent, gate, classifier, then enrichment and
// confirmation or a staff handoff.
type Orchestrator struct {
	agent        Agent
	history      HistoryStore
	enricher     *triage.Enricher
	validator    triage.SubmissionValidator
	staff        triage.StaffDirectory
	confirmation ConfirmationGenerator
	summarizer   HandoffSummarizer
	sinks        []ResultSink
	locks        *SessionLocks
	metrics      turnObserver
	tracer       trace.Tracer
	timeout      time.Duration
	logger       *logging.Logger
}

var _ TurnRunner = (*Orchestrator)(nil)

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Agent == nil {
		panic("conversation: agent cannot be nil")
	}
	if cfg.History == nil {
		panic("conversation: history store cannot be nil")
	}
	if cfg.Enricher == nil {
		panic("conversation: enricher cannot be nil")
	}
	if cfg.Validator == nil {
		panic("conversation: validator cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Locks == nil {
		cfg.Locks = NewSessionLocks()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("gyntriage.internal.conversation.orchestrator")
	}
	return &Orchestrator{
		agent:        cfg.Agent,
		history:      cfg.History,
		enricher:     cfg.Enricher,
		validator:    cfg.Validator,
		staff:        cfg.Staff,
		confirmation: cfg.Confirmation,
		summarizer:   cfg.Summarizer,
		sinks:        cfg.Sinks,
		locks:        cfg.Locks,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		timeout:      cfg.TurnTimeout,
		logger:       cfg.Logger,
	}
}

// RunTurn advances sessionID by one user message. Turns on the same session
// run one at a time. Nothing is persisted unless every external call
// succeeded; on error the caller should show ApologyResult.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("conversation: session id is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.New("conversation: message is required")
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "conversation.run_turn")
	defer span.End()
	span.SetAttributes(attribute.String("triage.session_id", sessionID))

	start := time.Now()
	result, err := o.runTurn(ctx, sessionID, message)

	kind := "error"
	if result != nil {
		kind = string(result.Kind)
		span.SetAttributes(attribute.String("triage.turn_kind", kind))
	}
	if o.metrics != nil {
		o.metrics.ObserveTurn(kind, err != nil, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("conversation turn failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	unlock, err := o.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: waiting for session %s: %w", sessionID, err)
	}
	defer unlock()

	history, err := o.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	step, err := o.agent.Advance(ctx, history, message, o.validator)
	if err != nil {
		return nil, fmt.Errorf("%w: agent: %w", ErrExternalCall, err)
	}
	transcript := append(append([]ChatMessage(nil), history...), step.Transcript...)

	var result *TurnResult
	switch {
	case step.Intake == nil:
		result = &TurnResult{SessionID: sessionID, Kind: TurnText, Content: step.Text, Partial: step.Partial}
	case triage.IsEscalation(*step.Intake):
		result, err = o.handoff(ctx, sessionID, *step.Intake, transcript)
	default:
		result, err = o.booking(ctx, sessionID, *step.Intake, transcript)
	}
	if err != nil {
		return nil, err
	}

	if result.Terminal() {
		transcript = append(transcript, ChatMessage{Role: ChatRoleAssistant, Content: result.Content})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.history.Save(ctx, sessionID, transcript); err != nil {
		return nil, err
	}

	for _, sink := range o.sinks {
		if err := sink.RecordTurn(ctx, result); err != nil {
			o.logger.Error("failed to record turn result", "session_id", sessionID, "kind", result.Kind, "error", err)
		}
	}
	return result, nil
}

func (o *Orchestrator) handoff(ctx context.Context, sessionID string, rec triage.IntakeRecord, transcript []ChatMessage) (*TurnResult, error) {
	escalation := triage.Classify(rec)
	packet := triage.BuildHandoff(rec)

	if o.summarizer != nil {
		summary, err := o.summarizer.Summarize(ctx, transcript, packet)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExternalCall, err)
		}
		packet = triage.ApplySummary(packet, summary)
	}

	o.logger.Info("intake escalated to staff",
		"session_id", sessionID,
		"signal", string(escalation.Signal),
		"urgency", string(packet.Urgency),
	)
	if o.metrics != nil {
		o.metrics.ObserveHandoff(string(packet.Urgency))
	}

	return &TurnResult{
		SessionID: sessionID,
		Kind:      TurnHandoff,
		Content:   triage.HandoffSubmittedMessage,
		Intake:    &packet.Triage,
		Handoff:   &packet,
	}, nil
}

func (o *Orchestrator) booking(ctx context.Context, sessionID string, rec triage.IntakeRecord, transcript []ChatMessage) (*TurnResult, error) {
	packet := o.enricher.Enrich(rec)

	content := triage.BookingSubmittedMessage
	if o.confirmation != nil {
		text, err := o.confirmation.Confirm(ctx, transcript, triage.ConfirmationContext(packet, o.staff))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExternalCall, err)
		}
		content = text
	}

	o.logger.Info("intake completed",
		"session_id", sessionID,
		"condition_id", deref(rec.ConditionID),
		"cycle_dependent", packet.CycleDependent,
		"self_pay", packet.SelfPay,
	)

	return &TurnResult{
		SessionID: sessionID,
		Kind:      TurnBooking,
		Content:   content,
		Intake:    &packet.Triage,
		Booking:   &packet,
	}, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
