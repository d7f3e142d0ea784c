package tokenstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	subject Subject
	expires time.Time
}

// Memory is an in-process store.  It is not shared between instances and
// is lost on restart; the server only falls back to it when Redis is down.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memEntry{}, now: time.Now}
}

func (m *Memory) Save(_ context.Context, token string, subject Subject, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.entries[token] = memEntry{subject: subject, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Consume(_ context.Context, token string) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return Subject{}, ErrNotFound
	}
	delete(m.entries, token)
	if !m.now().Before(e.expires) {
		return Subject{}, ErrNotFound
	}
	return e.subject, nil
}

// sweepLocked drops expired entries so abandoned tokens do not accumulate.
func (m *Memory) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
