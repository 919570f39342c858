package lead

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
)

type BackendMock struct{ mock.Mock }

func (m *BackendMock) CreateLead(ctx context.Context, l backend.Lead) error {
	return m.Called(ctx, l).Error(0)
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name        string
		in          backend.Lead
		wantSubject string
		backendErr  error
		wantErr     bool
	}{
		{
			name:        "default subject",
			in:          backend.Lead{CompanyName: "Acme", Email: "A@Acme.in ", ContactName: "Asha"},
			wantSubject: DefaultSubject,
		},
		{
			name:        "blank subject",
			in:          backend.Lead{CompanyName: "Acme", Email: "a@acme.in", Subject: "  "},
			wantSubject: DefaultSubject,
		},
		{
			name:        "custom subject kept",
			in:          backend.Lead{CompanyName: "Acme", Email: "a@acme.in", Subject: "Demo request"},
			wantSubject: "Demo request",
		},
		{
			name:        "backend error",
			in:          backend.Lead{CompanyName: "Acme", Email: "a@acme.in"},
			wantSubject: DefaultSubject,
			backendErr:  errors.New("crm down"),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(BackendMock)
			b.On("CreateLead", mock.Anything, mock.MatchedBy(func(l backend.Lead) bool {
				return l.Subject == tt.wantSubject && l.Email == "a@acme.in"
			})).Return(tt.backendErr).Once()

			svc := New(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
			err := svc.Create(context.Background(), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			b.AssertExpectations(t)
		})
	}
}
