package storefront

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Services{}, nil)
	return r
}

func TestRoutes_AuthenticatedGroupRequiresToken(t *testing.T) {
	router := newRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/checkout/s-1"},
		{http.MethodPost, "/api/v1/checkout/s-1/callback"},
		{http.MethodGet, "/api/v1/checkout/s-1/invoice"},
		{http.MethodGet, "/api/v1/profile/contacts"},
		{http.MethodGet, "/api/v1/subscriptions"},
		{http.MethodGet, "/api/v1/invoices/991"},
		{http.MethodPost, "/api/v1/logout"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRoutes_LoginIsRateLimited(t *testing.T) {
	router := newRouter()

	var codes []int
	for range sensitiveBurst + 1 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader("{"))
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	for _, c := range codes[:sensitiveBurst] {
		assert.Equal(t, http.StatusBadRequest, c)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[sensitiveBurst])
}

func TestRoutes_LoginLimitIgnoresForwardedHeaders(t *testing.T) {
	router := newRouter()

	limited := 0
	for i := range 3 * sensitiveBurst {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader("{"))
		req.RemoteAddr = "203.0.113.8:5555"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 2*sensitiveBurst, limited)
}

func TestRoutes_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
