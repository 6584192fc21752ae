// Package history stores the ordered role-tagged conversation log per
// (channel,user). It feeds the LLM context window; growth is unbounded and
// readers take only the most recent slice.
package history

import (
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role      string
	Content   string
	ToolName  string
	CreatedAt time.Time
}

type Store interface {
	Append(channel, userID string, msg Message) error
	Recent(channel, userID string, limit int) ([]Message, error)
	Count() (int, error)
	Close() error
}

// MemoryStore is the fallback backend when no database path is configured,
// and the test double everywhere else.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Message)}
}

func (m *MemoryStore) Append(channel, userID string, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	key := channel + ":" + userID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[key] = append(m.logs[key], msg)
	return nil
}

func (m *MemoryStore) Recent(channel, userID string, limit int) ([]Message, error) {
	key := channel + ":" + userID
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[key]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]Message, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryStore) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, log := range m.logs {
		total += len(log)
	}
	return total, nil
}

func (m *MemoryStore) Close() error { return nil }
