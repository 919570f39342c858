// Package account регистрация компаний с проверкой GSTIN, вход и выход пользователей,
// сброс пароля. Учётные данные проверяет backend; витрина выпускает только свой JWT.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
)

var (
	ErrInvalidGST       = errors.New("invalid gst number format")
	ErrGSTNotVerified   = errors.New("gst number is not verified")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidLogin     = errors.New("invalid credentials")
	ErrTokenRevoked     = errors.New("token revoked")
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[1-9A-Z]{1}Z[0-9A-Z]{1}$`)

// ValidGSTIN проверяет формат GSTIN.
func ValidGSTIN(gstin string) bool {
	return gstinPattern.MatchString(gstin)
}

// NormalizeGSTIN приводит GSTIN к виду, в котором его хранит backend.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.TrimSpace(gstin))
}

// Backend операции backend, которые использует аккаунт.
type Backend interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	CheckGST(ctx context.Context, gstin string) (*backend.CompanyDetails, error)
	Signup(ctx context.Context, reg backend.Registration) error
	ForgotPasswordRequest(ctx context.Context, email string) error
	ForgotPasswordConfirm(ctx context.Context, reset backend.PasswordReset) error
}

// Hints хранилище меток подтверждения с TTL (Redis).
type Hints interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// CredentialForgetter удаляет сохранённый токен backend.
type CredentialForgetter interface {
	ForgetCredential(ctx context.Context) error
}

type Service struct {
	backend     Backend
	hints       Hints
	tokens      jwt.Maker
	credentials CredentialForgetter
	gstTTL      time.Duration
	log         *slog.Logger
	now         func() time.Time
}

func New(b Backend, hints Hints, tokens jwt.Maker, credentials CredentialForgetter, gstTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		backend:     b,
		hints:       hints,
		tokens:      tokens,
		credentials: credentials,
		gstTTL:      gstTTL,
		log:         log,
		now:         time.Now,
	}
}

// Session выданная витриной сессия.
type Session struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

func gstKey(gstin string) string {
	return "gst:verified:" + gstin
}

func revokedKey(jti string) string {
	return "jwt:revoked:" + jti
}

// VerifyGST проверяет формат GSTIN и ищет компанию в backend.
// Успешная проверка открывает регистрацию для этого GSTIN на gst_verification_ttl.
func (s *Service) VerifyGST(ctx context.Context, gstin string) (*backend.CompanyDetails, error) {
	const op = "account.VerifyGST"
	gstin = NormalizeGSTIN(gstin)
	if !ValidGSTIN(gstin) {
		return nil, ErrInvalidGST
	}

	details, err := s.backend.CheckGST(ctx, gstin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hints.Set(ctx, gstKey(gstin), true, s.gstTTL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("gst number verified", slog.String("gstin", gstin))
	return details, nil
}

// Register регистрирует компанию. GSTIN должен быть предварительно подтверждён.
func (s *Service) Register(ctx context.Context, reg backend.Registration) error {
	const op = "account.Register"
	reg.GSTNumber = NormalizeGSTIN(reg.GSTNumber)
	reg.Email = normalizeEmail(reg.Email)

	verified, err := s.hints.Exists(ctx, gstKey(reg.GSTNumber))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !verified {
		return ErrGSTNotVerified
	}

	if err := s.backend.Signup(ctx, reg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hints.Invalidate(ctx, gstKey(reg.GSTNumber)); err != nil {
		s.log.Warn("failed to consume gst verification", sl.Op(op), sl.Err(err))
	}
	s.log.Info("company registered", slog.String("gstin", reg.GSTNumber))
	return nil
}

// Login проверяет учётные данные в backend и выпускает JWT витрины.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "account.Login"
	email = normalizeEmail(email)

	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		var be *backend.Error
		if errors.As(err, &be) {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidLogin, be.Message)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userID := res.UserID.Int64()
	if userID == 0 {
		return nil, fmt.Errorf("%s: %w: unexpected user id %q", op, ErrInvalidLogin, res.UserID)
	}

	token, err := s.tokens.GenerateToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{Token: token, UserID: userID, Email: email}, nil
}

// Authenticate разбирает JWT витрины и отклоняет отозванные токены.
func (s *Service) Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "account.Authenticate"
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	revoked, err := s.hints.Exists(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout отзывает JWT до истечения его срока и удаляет токен backend.
func (s *Service) Logout(ctx context.Context, claims *jwt.CustomClaims) error {
	const op = "account.Logout"
	if claims.ID != "" && claims.ExpiresAt != nil {
		ttl := claims.ExpiresAt.Sub(s.now())
		if ttl > 0 {
			if err := s.hints.Set(ctx, revokedKey(claims.ID), true, ttl); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	if err := s.credentials.ForgetCredential(ctx); err != nil {
		s.log.Warn("failed to forget backend credential", sl.Op(op), sl.Err(err))
	}
	s.log.Info("user logged out", slog.Int64("user_id", claims.UserID))
	return nil
}

// RequestPasswordReset просит backend выслать временный пароль.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "account.RequestPasswordReset"
	if err := s.backend.ForgotPasswordRequest(ctx, normalizeEmail(email)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConfirmPasswordReset устанавливает новый пароль по временному.
func (s *Service) ConfirmPasswordReset(ctx context.Context, reset backend.PasswordReset) error {
	const op = "account.ConfirmPasswordReset"
	if reset.NewPassword != reset.ConfirmPassword {
		return ErrPasswordMismatch
	}
	reset.Email = normalizeEmail(reset.Email)
	if err := s.backend.ForgotPasswordConfirm(ctx, reset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
