package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/magabrotheeeer/hr-storefront/internal/models"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
)

// State состояние сессии оформления.
type State string

const (
	StatePlanSelected             State = "plan_selected"
	StateConfiguring              State = "configuring"
	StateAwaitingPayment          State = "awaiting_external_payment"
	StateCallbackReceived         State = "payment_callback_received"
	StateSyncing                  State = "syncing_transaction"
	StateConfirmed                State = "confirmed"
	StateConfirmedWithSyncWarning State = "confirmed_with_sync_warning"
	StateNoSelection              State = "no_selection"
	StateAbandoned                State = "abandoned"
)

// paid состояния, в которых оплата уже получена.
func (s State) paid() bool {
	switch s {
	case StateCallbackReceived, StateSyncing, StateConfirmed, StateConfirmedWithSyncWarning:
		return true
	}
	return false
}

// Confirmed терминальное состояние после оплаты.
func (s State) Confirmed() bool {
	return s == StateConfirmed || s == StateConfirmedWithSyncWarning
}

// Customer покупатель, от имени которого идёт оформление.
type Customer struct {
	UserID  int64
	Email   string
	Name    string
	Contact string
}

// Session сессия оформления подписки.
type Session struct {
	ID               string            `json:"id"`
	UserID           int64             `json:"user_id"`
	Email            string            `json:"email"`
	CustomerName     string            `json:"customer_name,omitempty"`
	Contact          string            `json:"contact,omitempty"`
	Plan             models.Plan       `json:"plan"`
	Selection        pricing.Selection `json:"selection"`
	Quote            pricing.Quote     `json:"quote"`
	State            State             `json:"state"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	InvoiceID        string            `json:"invoice_id,omitempty"`
	SyncError        string            `json:"sync_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	PaymentStartedAt time.Time         `json:"payment_started_at,omitempty"`
	ConfirmedAt      time.Time         `json:"confirmed_at,omitempty"`
}

// SessionStore хранилище сессий.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
}

// JSONCache кэш JSON-значений с TTL (Redis).
type JSONCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CacheStore хранит сессии в Redis под ключом checkout:session:<id>.
type CacheStore struct {
	cache JSONCache
	ttl   time.Duration
}

func NewCacheStore(cache JSONCache, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: cache, ttl: ttl}
}

func sessionKey(id string) string {
	return "checkout:session:" + id
}

func (s *CacheStore) Get(ctx context.Context, id string) (*Session, bool, error) {
	var sess Session
	found, err := s.cache.Get(ctx, sessionKey(id), &sess)
	if err != nil || !found {
		return nil, false, err
	}
	return &sess, true, nil
}

func (s *CacheStore) Save(ctx context.Context, sess *Session) error {
	return s.cache.Set(ctx, sessionKey(sess.ID), sess, s.ttl)
}

// MemoryStore хранит сессии в памяти процесса.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return &sess, true, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}
