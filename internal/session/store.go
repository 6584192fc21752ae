package session

import "sync"

// Store abstracts session persistence. Get returns a snapshot; Update runs
// fn under the key's lock and returns a snapshot of the result. Implementers
// must keep updates for one key serialized.
type Store interface {
	Get(channel, userID string) *Session
	Update(channel, userID string, fn func(*Session)) *Session
	Delete(channel, userID string)
	Count() int
}

type keyLock struct {
	mu sync.Mutex
	s  *Session
}

// MemoryStore keeps sessions in a process-wide map with one mutex per key.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*keyLock
	defaultLang string
}

func NewMemoryStore(defaultLang string) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*keyLock),
		defaultLang: defaultLang,
	}
}

func (m *MemoryStore) entry(channel, userID string) *keyLock {
	key := channel + ":" + userID
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyLock{s: New(channel, userID, m.defaultLang)}
		m.entries[key] = e
	}
	return e
}

func (m *MemoryStore) Get(channel, userID string) *Session {
	e := m.entry(channel, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone()
}

func (m *MemoryStore) Update(channel, userID string, fn func(*Session)) *Session {
	e := m.entry(channel, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.s)
	return e.s.clone()
}

func (m *MemoryStore) Delete(channel, userID string) {
	key := channel + ":" + userID
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
