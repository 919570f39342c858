package otpsend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/services/profile"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) SendOTP(ctx context.Context, userID int64, otpType, value string) error {
	return m.Called(ctx, userID, otpType, value).Error(0)
}

func TestOTPSendHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		callService    bool
		mockErr        error
		wantStatusCode int
		wantBody       string
	}{
		{
			name:           "code sent",
			body:           `{"type":"email","value":"new@example.com"}`,
			callService:    true,
			wantStatusCode: http.StatusOK,
			wantBody:       `"status":"OK"`,
		},
		{
			name:           "unknown type",
			body:           `{"type":"fax","value":"123"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "field Type must be one of [email mobile]",
		},
		{
			name:           "cooldown",
			body:           `{"type":"email","value":"new@example.com"}`,
			callService:    true,
			mockErr:        profile.ErrOTPCooldown,
			wantStatusCode: http.StatusTooManyRequests,
			wantBody:       profile.ErrOTPCooldown.Error(),
		},
		{
			name:           "backend rejected",
			body:           `{"type":"email","value":"new@example.com"}`,
			callService:    true,
			mockErr:        fmt.Errorf("profile.SendOTP: %w", &backend.Error{Op: "backend.SendOTP", Message: "Email already in use"}),
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "Email already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("SendOTP", mock.Anything, int64(17), "email", "new@example.com").Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/profile/otp/send", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), 17, "asha@example.com"))
			w := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
