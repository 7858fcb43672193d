package sessions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// Recorder mirrors turn results into the session store.
type Recorder struct {
	store  Store
	logger *logging.Logger
}

var _ conversation.ResultSink = (*Recorder)(nil)

func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	if store == nil {
		panic("sessions: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordTurn updates the patient and condition names as they become known
// and, for a finished intake, stores the status and the packet.
func (r *Recorder) RecordTurn(ctx context.Context, result *conversation.TurnResult) error {
	if result == nil {
		return nil
	}
	if err := r.store.Ensure(ctx, result.SessionID); err != nil {
		return err
	}

	switch result.Kind {
	case conversation.TurnText:
		if result.Partial == nil {
			return nil
		}
		return r.store.Update(ctx, result.SessionID, Update{
			PatientName:   result.Partial.PatientName,
			ConditionName: result.Partial.ConditionName,
		})

	case conversation.TurnBooking, conversation.TurnHandoff:
		status := StatusCompleted
		var packet any = result.Booking
		if result.Kind == conversation.TurnHandoff {
			status = StatusEscalated
			packet = result.Handoff
		}
		kind := string(result.Kind)
		var intake triage.IntakeRecord
		if result.Intake != nil {
			intake = *result.Intake
		}
		if err := r.store.Update(ctx, result.SessionID, Update{
			PatientName:   intake.PatientName,
			Status:        &status,
			ConditionName: intake.ConditionName,
			ResultType:    &kind,
		}); err != nil {
			return err
		}

		body, err := json.Marshal(packet)
		if err != nil {
			return fmt.Errorf("sessions: encode result: %w", err)
		}
		if err := r.store.SaveResult(ctx, result.SessionID, body); err != nil {
			return err
		}
		r.logger.Info("session finished", "session_id", result.SessionID, "status", string(status))
	}
	return nil
}
