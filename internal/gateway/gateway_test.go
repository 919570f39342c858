package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hr-storefront/internal/metrics"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend эмулирует backend: выдаёт токены и проверяет их на /resource.
type fakeBackend struct {
	mu           sync.Mutex
	valid        map[string]bool
	issued       int32
	resourceHits int32
	failTokens   atomic.Bool
	alwaysReject atomic.Bool
	seenAuth     []string
	seenBodies   []string
	nextToken    int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{valid: map[string]bool{}}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.issued, 1)
		if f.failTokens.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var in struct {
			UserName string `json:"user_name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.UserName == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := atomic.AddInt32(&f.nextToken, 1)
		token := "tok-" + string(rune('a'+n-1))
		f.mu.Lock()
		f.valid[token] = true
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.resourceHits, 1)
		body, _ := io.ReadAll(r.Body)
		auth := r.Header.Get("Authorization")
		f.mu.Lock()
		f.seenAuth = append(f.seenAuth, auth)
		f.seenBodies = append(f.seenBodies, string(body))
		ok := f.valid[auth]
		f.mu.Unlock()
		if !ok || f.alwaysReject.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"token expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&f.resourceHits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database unavailable"}`))
	})
	return mux
}

func (f *fakeBackend) revokeAll() {
	f.mu.Lock()
	f.valid = map[string]bool{}
	f.mu.Unlock()
}

func setup(t *testing.T, authScheme string) (*Gateway, *fakeBackend, *MemoryStore) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	gw := New(Config{
		BaseURL:    srv.URL,
		TokenPath:  "/api/auth",
		Identity:   "storefront",
		AuthScheme: authScheme,
	}, store, newNoopLogger())
	return gw, fb, store
}

func TestGateway_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("acquires credential lazily when none stored", func(t *testing.T) {
		gw, fb, store := setup(t, "")

		resp, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.issued))
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.resourceHits))

		token, ok, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok-a", token)
		assert.Equal(t, []string{"tok-a"}, fb.seenAuth)
	})

	t.Run("reuses stored credential", func(t *testing.T) {
		gw, fb, store := setup(t, "")
		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.NoError(t, err)

		_, err = gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.NoError(t, err)

		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.issued))
		token, _, _ := store.Get(ctx)
		assert.Equal(t, "tok-a", token)
	})

	t.Run("treats undefined as absent", func(t *testing.T) {
		gw, fb, store := setup(t, "")
		require.NoError(t, store.Set(ctx, "undefined"))

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.issued))
		assert.Equal(t, []string{"tok-a"}, fb.seenAuth)
	})

	t.Run("sends without credential when acquisition fails", func(t *testing.T) {
		gw, fb, _ := setup(t, "")
		fb.failTokens.Store(true)

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/broken"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.resourceHits))
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	})

	t.Run("retries once after 401 with a fresh credential", func(t *testing.T) {
		gw, fb, store := setup(t, "")
		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.NoError(t, err)
		fb.revokeAll()

		resp, err := gw.Do(ctx, Request{Method: http.MethodPost, Path: "/resource", Body: map[string]int{"n": 7}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, int32(2), atomic.LoadInt32(&fb.issued))
		assert.Equal(t, int32(3), atomic.LoadInt32(&fb.resourceHits))
		assert.Equal(t, []string{"tok-a", "tok-a", "tok-b"}, fb.seenAuth)
		assert.Equal(t, fb.seenBodies[1], fb.seenBodies[2])
		assert.JSONEq(t, `{"n":7}`, fb.seenBodies[2])

		token, _, _ := store.Get(ctx)
		assert.Equal(t, "tok-b", token)
	})

	t.Run("surfaces second 401 without further retries", func(t *testing.T) {
		gw, fb, _ := setup(t, "")
		fb.alwaysReject.Store(true)

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "token expired", se.Message())

		assert.Equal(t, int32(2), atomic.LoadInt32(&fb.resourceHits))
		assert.Equal(t, int32(2), atomic.LoadInt32(&fb.issued))
	})

	t.Run("surfaces original 401 when reacquisition fails", func(t *testing.T) {
		gw, fb, store := setup(t, "")
		require.NoError(t, store.Set(ctx, "stale"))
		fb.failTokens.Store(true)

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.resourceHits))
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.issued))

		_, ok, _ := store.Get(ctx)
		assert.False(t, ok)
	})

	t.Run("does not retry non-401 failures", func(t *testing.T) {
		gw, fb, _ := setup(t, "")

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/broken"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fb.resourceHits))
		assert.Contains(t, err.Error(), "database unavailable")
	})

	t.Run("prefixes auth scheme when configured", func(t *testing.T) {
		gw, fb, store := setup(t, "Bearer")
		require.NoError(t, store.Set(ctx, "tok-x"))

		_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		require.Error(t, err)
		assert.Equal(t, "Bearer tok-x", fb.seenAuth[0])
	})
}

func TestGateway_ConcurrentRequests(t *testing.T) {
	gw, fb, _ := setup(t, "")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	issued := atomic.LoadInt32(&fb.issued)
	assert.GreaterOrEqual(t, issued, int32(1))
	assert.LessOrEqual(t, issued, int32(n))
}

func TestGateway_RetryMetrics(t *testing.T) {
	gw, _, store := setup(t, "")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "stale"))

	retries := testutil.ToFloat64(metrics.UnauthorizedRetries)
	acquired := testutil.ToFloat64(metrics.CredentialAcquisitions.WithLabelValues("ok"))
	unauthorized := testutil.ToFloat64(metrics.BackendRequests.WithLabelValues(http.MethodGet, "4xx"))

	_, err := gw.Do(ctx, Request{Method: http.MethodGet, Path: "/resource"})
	require.NoError(t, err)

	assert.Equal(t, retries+1, testutil.ToFloat64(metrics.UnauthorizedRetries))
	assert.Equal(t, acquired+1, testutil.ToFloat64(metrics.CredentialAcquisitions.WithLabelValues("ok")))
	assert.Equal(t, unauthorized+1, testutil.ToFloat64(metrics.BackendRequests.WithLabelValues(http.MethodGet, "4xx")))
}

func TestGateway_ForgetCredential(t *testing.T) {
	gw, _, store := setup(t, "")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "tok"))

	require.NoError(t, gw.ForgetCredential(ctx))
	_, ok, _ := store.Get(ctx)
	assert.False(t, ok)
}

func TestStatusError_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "json message", body: `{"message":"bad input"}`, want: "bad input"},
		{name: "not json", body: `<html>`, want: ""},
		{name: "no message", body: `{"status":"error"}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &StatusError{Code: 400, Body: []byte(tt.body)}
			assert.Equal(t, tt.want, e.Message())
		})
	}
}
