package register

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/services/account"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, reg backend.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func validRequest() Request {
	return Request{
		FirstName:       "Asha",
		LastName:        "Kulkarni",
		CompanyName:     "Acme Payroll",
		GSTNumber:       "27AAPFU0939F1ZV",
		Mobile:          "9000000000",
		Email:           "asha@example.com",
		Street:          "MG Road",
		Pincode:         "411001",
		StateID:         12,
		CountryID:       104,
		City:            "Pune",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	}
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		modify         func(r *Request)
		mockErr        error
		callService    bool
		wantStatusCode int
		wantBody       string
	}{
		{
			name:           "registered",
			callService:    true,
			wantStatusCode: http.StatusCreated,
			wantBody:       "registration successful",
		},
		{
			name:           "passwords differ",
			modify:         func(r *Request) { r.ConfirmPassword = "other" },
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "field ConfirmPassword must match Password",
		},
		{
			name:           "malformed gst number",
			modify:         func(r *Request) { r.GSTNumber = "27AAPFU0939F1AV" },
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "field GSTNumber must be a valid GST number",
		},
		{
			name:           "gst not verified",
			mockErr:        account.ErrGSTNotVerified,
			callService:    true,
			wantStatusCode: http.StatusConflict,
			wantBody:       "please verify your GST number first",
		},
		{
			name:           "backend rejects",
			mockErr:        &backend.Error{Op: "backend.Signup", Message: "Email already registered"},
			callService:    true,
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "Email already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("Register", mock.Anything, mock.MatchedBy(func(reg backend.Registration) bool {
					return reg.Email == "asha@example.com" && reg.Password == "secret123" && reg.StateID == 12
				})).Return(tt.mockErr).Once()
			}

			body := validRequest()
			if tt.modify != nil {
				tt.modify(&body)
			}
			raw, err := json.Marshal(body)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(raw))
			w := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
