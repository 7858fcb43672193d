package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryQueueBuffer = 128

// MemoryQueue carries turn jobs through a buffered channel, for single-process
// deployments and tests.
type MemoryQueue struct {
	ch chan queueMessage
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = defaultMemoryQueueBuffer
	}
	return &MemoryQueue{ch: make(chan queueMessage, buffer)}
}

// Send enqueues body, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := queueMessage{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds for the first message (forever when
// waitSeconds is 0) and then drains whatever else is buffered, up to
// maxMessages.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var expired <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		expired = timer.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, nil
	case first = <-q.ch:
	}

	batch := []queueMessage{first}
	for len(batch) < maxMessages {
		select {
		case msg := <-q.ch:
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Delete is a no-op; a received message is already gone from the channel.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}

// Len reports the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
