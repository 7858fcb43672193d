// Package sessions keeps the per-session metadata behind the dashboard's
// history view: who the patient is, how the intake ended, and the finished
// packet.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is where a session's intake stands.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusEscalated Status = "escalated"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("sessions: session not found")

// Session is the dashboard row for one conversation.
type Session struct {
	ID            string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	PatientName   *string   `json:"patient_name"`
	Status        Status    `json:"status"`
	ConditionName *string   `json:"condition_name"`
	ResultType    *string   `json:"result_type"`
}

// Update changes only the fields that are set.
type Update struct {
	PatientName   *string
	Status        *Status
	ConditionName *string
	ResultType    *string
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.PatientName == nil && u.Status == nil && u.ConditionName == nil && u.ResultType == nil
}

// Store persists session metadata and finished packets.
type Store interface {
	Create(ctx context.Context, id string) (Session, error)
	// Ensure creates the session if it does not exist yet.
	Ensure(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Session, error)
	// List returns sessions newest first.
	List(ctx context.Context, limit int) ([]Session, error)
	Update(ctx context.Context, id string, u Update) error
	SaveResult(ctx context.Context, id string, result json.RawMessage) error
	// GetResult returns nil when the session has no result yet.
	GetResult(ctx context.Context, id string) (json.RawMessage, error)
	// DeleteInactive removes sessions that started but never finished.
	DeleteInactive(ctx context.Context) (int64, error)
	// DeleteInactiveBefore removes unfinished sessions created before cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func listLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
