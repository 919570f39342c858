// Package profile данные клиента в backend: контакты, история подписок, профиль компании.
// Смена e-mail или телефона контакта требует подтверждения по одноразовому коду.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
)

const (
	OTPTypeEmail  = "email"
	OTPTypeMobile = "mobile"
)

var (
	ErrInvalidOTPType     = errors.New("otp type must be email or mobile")
	ErrInvalidOTP         = errors.New("otp must be 6 digits")
	ErrOTPCooldown        = errors.New("otp was sent recently, try again later")
	ErrContactNotFound    = errors.New("contact not found")
	ErrContactNotVerified = errors.New("contact change is not verified")
	ErrMissingInvoiceID   = errors.New("invoice id is required")
	ErrInvoiceNotFound    = errors.New("invoice not found")
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

type Backend interface {
	UserContacts(ctx context.Context, userID int64) ([]backend.Contact, error)
	CustomerSubscriptions(ctx context.Context, userID int64) ([]backend.Subscription, error)
	DownloadInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error)
	SendOTP(ctx context.Context, req backend.OTPRequest) error
	VerifyOTP(ctx context.Context, req backend.OTPRequest) error
	UpdateUserContact(ctx context.Context, userID, contactID int64, upd backend.ContactUpdate) error
	UpdateProfile(ctx context.Context, userID int64, p backend.Profile) error
}

// Hints метки с TTL (Redis): пауза между отправками кода и подтверждённые значения.
type Hints interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

type Service struct {
	backend     Backend
	hints       Hints
	cooldown    time.Duration
	verifiedTTL time.Duration
	log         *slog.Logger
}

func New(b Backend, hints Hints, cooldown, verifiedTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		backend:     b,
		hints:       hints,
		cooldown:    cooldown,
		verifiedTTL: verifiedTTL,
		log:         log,
	}
}

func otpKey(kind string, userID int64, otpType, value string) string {
	return "otp:" + kind + ":" + strconv.FormatInt(userID, 10) + ":" + otpType + ":" + value
}

func normalizeValue(otpType, value string) string {
	value = strings.TrimSpace(value)
	if otpType == OTPTypeEmail {
		return strings.ToLower(value)
	}
	return value
}

func validType(otpType string) bool {
	return otpType == OTPTypeEmail || otpType == OTPTypeMobile
}

func (s *Service) Contacts(ctx context.Context, userID int64) ([]backend.Contact, error) {
	const op = "profile.Contacts"
	contacts, err := s.backend.UserContacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return contacts, nil
}

// Subscriptions история подписок клиента.
func (s *Service) Subscriptions(ctx context.Context, userID int64) ([]backend.Subscription, error) {
	const op = "profile.Subscriptions"
	subs, err := s.backend.CustomerSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// InvoicePDF скачивает счёт из истории подписок пользователя. Backend не знает,
// от чьего имени идёт запрос, поэтому принадлежность счёта проверяется здесь.
func (s *Service) InvoicePDF(ctx context.Context, userID int64, invoiceID string) ([]byte, error) {
	const op = "profile.InvoicePDF"
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, ErrMissingInvoiceID
	}

	subs, err := s.backend.CustomerSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ownsInvoice(subs, invoiceID) {
		s.log.Warn("invoice requested by non-owner", sl.Op(op),
			slog.Int64("user_id", userID), slog.String("invoice_id", invoiceID))
		return nil, ErrInvoiceNotFound
	}

	body, err := s.backend.DownloadInvoicePDF(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return body, nil
}

func ownsInvoice(subs []backend.Subscription, invoiceID string) bool {
	for _, sub := range subs {
		if sub.InvoiceID.String() == invoiceID {
			return true
		}
	}
	return false
}

// SendOTP отправляет код на новый e-mail или телефон. Повтор возможен не раньше otp_cooldown.
func (s *Service) SendOTP(ctx context.Context, userID int64, otpType, value string) error {
	const op = "profile.SendOTP"
	if !validType(otpType) {
		return ErrInvalidOTPType
	}
	value = normalizeValue(otpType, value)

	key := otpKey("cooldown", userID, otpType, value)
	ok, err := s.hints.SetNX(ctx, key, true, s.cooldown)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return ErrOTPCooldown
	}

	err = s.backend.SendOTP(ctx, backend.OTPRequest{UserID: userID, Type: otpType, Value: value})
	if err != nil {
		if ierr := s.hints.Invalidate(ctx, key); ierr != nil {
			s.log.Warn("failed to release otp cooldown", sl.Op(op), sl.Err(ierr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("otp sent", slog.Int64("user_id", userID), slog.String("type", otpType))
	return nil
}

// VerifyOTP проверяет код и запоминает подтверждённое значение на otp_verified_ttl.
func (s *Service) VerifyOTP(ctx context.Context, userID int64, otpType, value, otp string) error {
	const op = "profile.VerifyOTP"
	if !validType(otpType) {
		return ErrInvalidOTPType
	}
	otp = strings.TrimSpace(otp)
	if !otpPattern.MatchString(otp) {
		return ErrInvalidOTP
	}
	value = normalizeValue(otpType, value)

	err := s.backend.VerifyOTP(ctx, backend.OTPRequest{UserID: userID, Type: otpType, Value: value, OTP: otp})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hints.Set(ctx, otpKey("verified", userID, otpType, value), true, s.verifiedTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateContact меняет контакт. Новые e-mail и телефон должны быть подтверждены кодом.
func (s *Service) UpdateContact(ctx context.Context, userID, contactID int64, upd backend.ContactUpdate) error {
	const op = "profile.UpdateContact"

	contacts, err := s.backend.UserContacts(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var current *backend.Contact
	for i := range contacts {
		if contacts[i].ID == contactID {
			current = &contacts[i]
			break
		}
	}
	if current == nil {
		return ErrContactNotFound
	}

	upd.Email = normalizeValue(OTPTypeEmail, upd.Email)
	upd.Mobile = normalizeValue(OTPTypeMobile, upd.Mobile)

	var consumed []string
	changes := []struct {
		otpType  string
		newValue string
		oldValue string
	}{
		{OTPTypeEmail, upd.Email, normalizeValue(OTPTypeEmail, string(current.Email))},
		{OTPTypeMobile, upd.Mobile, normalizeValue(OTPTypeMobile, string(current.Mobile))},
	}
	for _, c := range changes {
		if c.newValue == "" || c.newValue == c.oldValue {
			continue
		}
		key := otpKey("verified", userID, c.otpType, c.newValue)
		ok, err := s.hints.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrContactNotVerified, c.otpType)
		}
		consumed = append(consumed, key)
	}

	if err := s.backend.UpdateUserContact(ctx, userID, contactID, upd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, key := range consumed {
		if err := s.hints.Invalidate(ctx, key); err != nil {
			s.log.Warn("failed to consume otp verification", sl.Op(op), sl.Err(err))
		}
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p backend.Profile) error {
	const op = "profile.UpdateProfile"
	if err := s.backend.UpdateProfile(ctx, userID, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
