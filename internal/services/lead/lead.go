// Package lead заявки с контактной формы.
package lead

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
)

// DefaultSubject тема заявки, если пользователь её не указал.
const DefaultSubject = "Contact Inquiry"

type Backend interface {
	CreateLead(ctx context.Context, lead backend.Lead) error
}

type Service struct {
	backend Backend
	log     *slog.Logger
}

func New(b Backend, log *slog.Logger) *Service {
	return &Service{backend: b, log: log}
}

// Create передаёт заявку в CRM backend.
func (s *Service) Create(ctx context.Context, l backend.Lead) error {
	const op = "lead.Create"
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	l.GSTNumber = strings.ToUpper(strings.TrimSpace(l.GSTNumber))
	if strings.TrimSpace(l.Subject) == "" {
		l.Subject = DefaultSubject
	}
	if err := s.backend.CreateLead(ctx, l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("lead created", slog.String("company", l.CompanyName))
	return nil
}
