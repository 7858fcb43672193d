package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// turnJob is the queued form of one RunTurn call.
type turnJob struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// Deadline mirrors the caller's context deadline, if it had one.
	Deadline *time.Time `json:"deadline,omitempty"`
}

func encodeTurnJob(job turnJob) (turnJob, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return turnJob{}, "", fmt.Errorf("conversation: failed to encode turn job: %w", err)
	}

	return job, string(body), nil
}

func decodeTurnJob(body string) (turnJob, error) {
	var job turnJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return turnJob{}, fmt.Errorf("conversation: failed to decode turn job: %w", err)
	}
	return job, nil
}
