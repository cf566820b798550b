package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired: outro holder segura o lease. Semântica é
// acquire-or-skip — quem não pegou reporta e segue, nunca enfileira.
var ErrNotAcquired = errors.New("lease held by another holder")

// Lease é a exclusão mútua por recurso (rodada ou fixture), limitada no
// tempo pra poder ser recuperada se o holder morrer.
type Lease interface {
	// Acquire devolve um token de posse ou ErrNotAcquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// Release libera o lease se (e só se) o token ainda for o holder.
	Release(ctx context.Context, key, token string) error
}

// Memory é a implementação em memória para processo único e testes.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memEntry
	clock func() time.Time
}

type memEntry struct {
	token  string
	expiry time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]memEntry), clock: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if e, ok := m.held[key]; ok && e.expiry.After(now) {
		return "", ErrNotAcquired
	}

	token := newToken()
	m.held[key] = memEntry{token: token, expiry: now.Add(ttl)}
	return token, nil
}

func (m *Memory) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.held[key]; ok && e.token == token {
		delete(m.held, key)
	}
	return nil
}
