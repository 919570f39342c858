package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/cache"
	"github.com/magabrotheeeer/hr-storefront/internal/config"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/jwt"
)

const validGSTIN = "27AAPFU0939F1ZV"

type BackendMock struct{ mock.Mock }

func (m *BackendMock) Login(ctx context.Context, email, password string) (*backend.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.LoginResult), args.Error(1)
}

func (m *BackendMock) CheckGST(ctx context.Context, gstin string) (*backend.CompanyDetails, error) {
	args := m.Called(ctx, gstin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.CompanyDetails), args.Error(1)
}

func (m *BackendMock) Signup(ctx context.Context, reg backend.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

func (m *BackendMock) ForgotPasswordRequest(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *BackendMock) ForgotPasswordConfirm(ctx context.Context, reset backend.PasswordReset) error {
	return m.Called(ctx, reset).Error(0)
}

type ForgetterMock struct{ mock.Mock }

func (m *ForgetterMock) ForgetCredential(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc       *Service
	backend   *BackendMock
	forgetter *ForgetterMock
	tokens    *jwt.MakerImpl
	redis     *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f := &fixture{
		backend:   new(BackendMock),
		forgetter: new(ForgetterMock),
		tokens:    jwt.NewJWTMaker("test-secret", time.Hour),
		redis:     mr,
	}
	f.svc = New(f.backend, c, f.tokens, f.forgetter, 30*time.Minute, newNoopLogger())
	return f
}

func TestValidGSTIN(t *testing.T) {
	tests := []struct {
		gstin string
		want  bool
	}{
		{validGSTIN, true},
		{"29ABCDE1234F1Z5", true},
		{"27aapfu0939f1zv", false},
		{"27AAPFU0939F1AV", false},
		{"27AAPFU0939F0ZV", false},
		{"", false},
		{"27AAPFU0939F1ZVX", false},
	}
	for _, tt := range tests {
		t.Run(tt.gstin, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidGSTIN(tt.gstin))
		})
	}
}

func TestService_VerifyGST(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid format never reaches backend", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyGST(ctx, "12345")
		require.ErrorIs(t, err, ErrInvalidGST)
		f.backend.AssertNotCalled(t, "CheckGST", mock.Anything, mock.Anything)
	})

	t.Run("verified number is remembered", func(t *testing.T) {
		f := newFixture(t)
		details := &backend.CompanyDetails{Name: "Acme Payroll", City: "Pune"}
		f.backend.On("CheckGST", mock.Anything, validGSTIN).Return(details, nil).Once()

		got, err := f.svc.VerifyGST(ctx, " 27aapfu0939f1zv ")
		require.NoError(t, err)
		assert.Equal(t, details, got)
		assert.True(t, f.redis.Exists("gst:verified:"+validGSTIN))
		assert.Equal(t, 30*time.Minute, f.redis.TTL("gst:verified:"+validGSTIN))
	})

	t.Run("company not found", func(t *testing.T) {
		f := newFixture(t)
		f.backend.On("CheckGST", mock.Anything, validGSTIN).
			Return(nil, fmt.Errorf("backend.CheckGST: %w", backend.ErrCompanyNotFound)).Once()

		_, err := f.svc.VerifyGST(ctx, validGSTIN)
		require.ErrorIs(t, err, backend.ErrCompanyNotFound)
		assert.False(t, f.redis.Exists("gst:verified:"+validGSTIN))
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	reg := backend.Registration{
		FirstName:   "Asha",
		CompanyName: "Acme Payroll",
		GSTNumber:   validGSTIN,
		Email:       "Asha@Example.com",
		Password:    "secret123",
	}

	t.Run("unverified gst is refused", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.Register(ctx, reg)
		require.ErrorIs(t, err, ErrGSTNotVerified)
		f.backend.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
	})

	t.Run("verified gst registers once", func(t *testing.T) {
		f := newFixture(t)
		f.backend.On("CheckGST", mock.Anything, validGSTIN).Return(&backend.CompanyDetails{Name: "Acme"}, nil)
		f.backend.On("Signup", mock.Anything, mock.MatchedBy(func(r backend.Registration) bool {
			return r.Email == "asha@example.com" && r.GSTNumber == validGSTIN
		})).Return(nil).Once()

		_, err := f.svc.VerifyGST(ctx, validGSTIN)
		require.NoError(t, err)
		require.NoError(t, f.svc.Register(ctx, reg))
		assert.False(t, f.redis.Exists("gst:verified:"+validGSTIN))

		err = f.svc.Register(ctx, reg)
		require.ErrorIs(t, err, ErrGSTNotVerified)
		f.backend.AssertExpectations(t)
	})

	t.Run("expired verification", func(t *testing.T) {
		f := newFixture(t)
		f.backend.On("CheckGST", mock.Anything, validGSTIN).Return(&backend.CompanyDetails{Name: "Acme"}, nil)
		_, err := f.svc.VerifyGST(ctx, validGSTIN)
		require.NoError(t, err)

		f.redis.FastForward(31 * time.Minute)
		err = f.svc.Register(ctx, reg)
		require.ErrorIs(t, err, ErrGSTNotVerified)
	})

	t.Run("backend rejection keeps verification", func(t *testing.T) {
		f := newFixture(t)
		f.backend.On("CheckGST", mock.Anything, validGSTIN).Return(&backend.CompanyDetails{Name: "Acme"}, nil)
		f.backend.On("Signup", mock.Anything, mock.Anything).
			Return(&backend.Error{Op: "backend.Signup", Message: "email already exists"}).Once()

		_, err := f.svc.VerifyGST(ctx, validGSTIN)
		require.NoError(t, err)
		err = f.svc.Register(ctx, reg)
		require.Error(t, err)
		assert.Equal(t, "email already exists", backend.Message(err))
		assert.True(t, f.redis.Exists("gst:verified:"+validGSTIN))
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		setupMocks func(b *BackendMock)
		wantUserID int64
		wantErr    error
	}{
		{
			name: "successful login",
			setupMocks: func(b *BackendMock) {
				b.On("Login", mock.Anything, "asha@example.com", "pw").
					Return(&backend.LoginResult{UserID: "17"}, nil).Once()
			},
			wantUserID: 17,
		},
		{
			name: "backend rejects credentials",
			setupMocks: func(b *BackendMock) {
				b.On("Login", mock.Anything, "asha@example.com", "pw").
					Return(nil, &backend.Error{Op: "backend.Login", Message: "Invalid password"}).Once()
			},
			wantErr: ErrInvalidLogin,
		},
		{
			name: "non numeric user id",
			setupMocks: func(b *BackendMock) {
				b.On("Login", mock.Anything, "asha@example.com", "pw").
					Return(&backend.LoginResult{UserID: "abc"}, nil).Once()
			},
			wantErr: ErrInvalidLogin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f.backend)

			sess, err := f.svc.Login(ctx, " Asha@Example.com", "pw")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUserID, sess.UserID)
			assert.Equal(t, "asha@example.com", sess.Email)

			claims, err := f.svc.Authenticate(ctx, sess.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUserID, claims.UserID)
			assert.NotEmpty(t, claims.ID)
		})
	}
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.On("Login", mock.Anything, "asha@example.com", "pw").
		Return(&backend.LoginResult{UserID: "17"}, nil)
	f.forgetter.On("ForgetCredential", mock.Anything).Return(errors.New("redis down")).Once()

	sess, err := f.svc.Login(ctx, "asha@example.com", "pw")
	require.NoError(t, err)
	claims, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims))
	f.forgetter.AssertExpectations(t)

	_, err = f.svc.Authenticate(ctx, sess.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	ttl := f.redis.TTL("jwt:revoked:" + claims.ID)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "revocation must last until token expiry, got %s", ttl)
}

func TestService_Authenticate_InvalidToken(t *testing.T) {
	f := newFixture(t)
	other := jwt.NewJWTMaker("other-secret", time.Hour)
	token, err := other.GenerateToken(1, "x@example.com")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.backend.On("ForgotPasswordRequest", mock.Anything, "asha@example.com").Return(nil).Once()
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ASHA@example.com "))

	err := f.svc.ConfirmPasswordReset(ctx, backend.PasswordReset{
		Email: "asha@example.com", TempPassword: "tmp", NewPassword: "a", ConfirmPassword: "b",
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)
	f.backend.AssertNotCalled(t, "ForgotPasswordConfirm", mock.Anything, mock.Anything)

	reset := backend.PasswordReset{
		Email: "asha@example.com", TempPassword: "tmp", NewPassword: "new-pw", ConfirmPassword: "new-pw",
	}
	f.backend.On("ForgotPasswordConfirm", mock.Anything, reset).Return(nil).Once()
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, reset))
	f.backend.AssertExpectations(t)
}
