package contacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Contacts(ctx context.Context, userID int64) ([]backend.Contact, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).([]backend.Contact)
	return c, args.Error(1)
}

func TestContactsHandler(t *testing.T) {
	tests := []struct {
		name           string
		contacts       []backend.Contact
		err            error
		wantStatusCode int
		wantBody       string
	}{
		{
			name:           "contacts listed",
			contacts:       []backend.Contact{{ID: 5, Name: "Asha", Email: "asha@example.com"}},
			wantStatusCode: http.StatusOK,
			wantBody:       `"email":"asha@example.com"`,
		},
		{
			name:           "no contacts",
			wantStatusCode: http.StatusOK,
			wantBody:       `"status":"OK"`,
		},
		{
			name:           "backend down",
			err:            errors.New("dial tcp: connection refused"),
			wantStatusCode: http.StatusBadGateway,
			wantBody:       "backend is unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Contacts", mock.Anything, int64(17)).Return(tt.contacts, tt.err).Once()

			req := httptest.NewRequest(http.MethodGet, "/profile/contacts", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), 17, "asha@example.com"))
			w := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestContactsHandler_NoUser(t *testing.T) {
	svc := new(ServiceMock)
	req := httptest.NewRequest(http.MethodGet, "/profile/contacts", nil)
	w := httptest.NewRecorder()

	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Contacts", mock.Anything, mock.Anything)
}
