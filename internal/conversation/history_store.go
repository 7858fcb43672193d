package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultHistoryTTL = 24 * time.Hour

// HistoryStore persists the transcript of each session. Load returns an empty
// history for a session it has never seen.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]ChatMessage, error)
	Save(ctx context.Context, sessionID string, history []ChatMessage) error
	Delete(ctx context.Context, sessionID string) error
}

// RedisHistoryStore keeps transcripts in Redis with a sliding TTL.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

func NewRedisHistoryStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("gyntriage.internal.conversation.history")
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &RedisHistoryStore{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
	}
}

func (s *RedisHistoryStore) Save(ctx context.Context, sessionID string, history []ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

func (s *RedisHistoryStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_history")
	defer span.End()

	if err := s.redis.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete history: %w", err)
	}
	return nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("triage:history:%s", sessionID)
}

// MemoryHistoryStore is a process-local HistoryStore for development and tests.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]ChatMessage
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{sessions: make(map[string][]ChatMessage)}
}

func (s *MemoryHistoryStore) Load(_ context.Context, sessionID string) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage(nil), s.sessions[sessionID]...), nil
}

func (s *MemoryHistoryStore) Save(_ context.Context, sessionID string, history []ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append([]ChatMessage(nil), history...)
	return nil
}

func (s *MemoryHistoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
