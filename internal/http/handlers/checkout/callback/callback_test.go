package callback

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) OnPaymentCallback(ctx context.Context, userID int64, id, reference string) (*checkout.Confirmation, error) {
	args := m.Called(ctx, userID, id, reference)
	c, _ := args.Get(0).(*checkout.Confirmation)
	return c, args.Error(1)
}

func newRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout/s-1/callback", bytes.NewBufferString(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "s-1")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithUser(ctx, 17, "asha@example.com"))
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(m *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "confirmed",
			body: `{"payment_reference":"pay_1"}`,
			setupMock: func(m *ServiceMock) {
				m.On("OnPaymentCallback", mock.Anything, int64(17), "s-1", "pay_1").
					Return(&checkout.Confirmation{SessionID: "s-1", State: checkout.StateConfirmed, InvoiceID: "991"}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       `"invoice_id":"991"`,
		},
		{
			name: "confirmed with sync warning is still a success",
			body: `{"payment_reference":"pay_2"}`,
			setupMock: func(m *ServiceMock) {
				m.On("OnPaymentCallback", mock.Anything, int64(17), "s-1", "pay_2").
					Return(&checkout.Confirmation{SessionID: "s-1", State: checkout.StateConfirmedWithSyncWarning, Warning: "check your email"}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       `"state":"confirmed_with_sync_warning"`,
		},
		{
			name:           "missing reference",
			body:           `{}`,
			setupMock:      func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "field PaymentReference is a required field",
		},
		{
			name: "payment never opened",
			body: `{"payment_reference":"pay_3"}`,
			setupMock: func(m *ServiceMock) {
				m.On("OnPaymentCallback", mock.Anything, int64(17), "s-1", "pay_3").
					Return(nil, checkout.ErrInvalidTransition).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       "operation not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			w := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, newRequest(tt.body))

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
