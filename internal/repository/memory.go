package repository

import (
	"context"
	"sync"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

// MemorySessions is the in-process fallback store used when redis is not
// configured or unreachable. Single instance only.
type MemorySessions struct {
	mu         sync.Mutex
	sessions   map[string]memoryEntry
	claims     map[string]time.Time
	counters   map[string]*windowCounter
	sessionTTL time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	session   models.Session
	expiresAt time.Time
}

type windowCounter struct {
	count    int
	resetsAt time.Time
}

func NewMemorySessions(sessionTTL time.Duration) *MemorySessions {
	if sessionTTL <= 0 {
		sessionTTL = time.Duration(models.DefaultSessionTTL) * time.Second
	}
	return &MemorySessions{
		sessions:   make(map[string]memoryEntry),
		claims:     make(map[string]time.Time),
		counters:   make(map[string]*windowCounter),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (m *MemorySessions) GetSession(_ context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[token]
	if !ok || m.now().After(entry.expiresAt) {
		delete(m.sessions, token)
		return nil, database.ErrNotFound
	}
	session := entry.session
	return &session, nil
}

func (m *MemorySessions) SetSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = memoryEntry{
		session:   *session,
		expiresAt: m.now().Add(m.sessionTTL),
	}
	return nil
}

func (m *MemorySessions) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessions) ClaimOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, ok := m.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.claims[key] = now.Add(ttl)
	return true, nil
}

func (m *MemorySessions) ReleaseClaim(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

func (m *MemorySessions) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	counter, ok := m.counters[key]
	if !ok || now.After(counter.resetsAt) {
		counter = &windowCounter{resetsAt: now.Add(window)}
		m.counters[key] = counter
	}
	counter.count++
	return counter.count <= limit, nil
}
