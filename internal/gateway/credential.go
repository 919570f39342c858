package gateway

import (
	"context"
	"sync"
)

// CredentialKey фиксированный ключ, под которым хранится токен backend.
const CredentialKey = "token"

// CredentialStore одно-слотовое хранилище токена backend.
//
// Токен общий для всех запросов процесса: чтение без блокировки,
// запись по принципу "последний писатель побеждает".
type CredentialStore interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore хранит токен в памяти процесса.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != "", nil
}

func (m *MemoryStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// usable отсекает значения, которые фронтенд исторически записывал вместо отсутствующего токена.
func usable(token string) bool {
	return token != "" && token != "undefined"
}
