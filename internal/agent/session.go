package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message roles follow the model API convention.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionStore keeps per-conversation chat history, keyed by an explicit
// conversation id. State is never shared across conversations and no
// session affinity is assumed.
type SessionStore interface {
	History(ctx context.Context, conversationID string) ([]Message, error)
	Append(ctx context.Context, conversationID string, messages ...Message) error
	Clear(ctx context.Context, conversationID string) error
}

type memorySession struct {
	messages  []Message
	updatedAt time.Time
}

// MemoryStore is the in-process SessionStore. Idle conversations expire
// after the TTL.
type MemoryStore struct {
	sessions map[string]*memorySession
	mu       sync.Mutex
	ttl      time.Duration
	limit    int
}

// NewMemoryStore creates a store with the given idle TTL and history cap.
func NewMemoryStore(ttl time.Duration, historyLimit int) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 30
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		limit:    historyLimit,
	}
}

func (s *MemoryStore) History(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[conversationID]
	if !ok || time.Since(session.updatedAt) > s.ttl {
		return nil, nil
	}
	out := make([]Message, len(session.messages))
	copy(out, session.messages)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, messages ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[conversationID]
	if !ok || time.Since(session.updatedAt) > s.ttl {
		session = &memorySession{}
		s.sessions[conversationID] = session
	}
	session.messages = append(session.messages, messages...)
	if len(session.messages) > s.limit {
		session.messages = session.messages[len(session.messages)-s.limit:]
	}
	session.updatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}

// Cleanup removes expired sessions and returns how many were dropped.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if time.Since(session.updatedAt) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup on a ticker until ctx is done.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// RedisStore keeps conversation history in Redis so chat state survives
// process restarts. Keys expire after the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	limit  int
}

// NewRedisStore creates a Redis-backed SessionStore.
func NewRedisStore(client *redis.Client, ttl time.Duration, historyLimit int) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 30
	}
	return &RedisStore{client: client, ttl: ttl, limit: historyLimit}
}

func sessionKey(conversationID string) string {
	return "chat:history:" + conversationID
}

func (s *RedisStore) History(ctx context.Context, conversationID string) ([]Message, error) {
	data, err := s.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode session history: %w", err)
	}
	return messages, nil
}

func (s *RedisStore) Append(ctx context.Context, conversationID string, messages ...Message) error {
	history, err := s.History(ctx, conversationID)
	if err != nil {
		return err
	}
	history = append(history, messages...)
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode session history: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(conversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session history: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
