// Package reconcile повторно передаёт в backend оплаты, которые не удалось
// синхронизировать при колбэке виджета.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/models"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
)

type Ledger interface {
	ListUnsynced(ctx context.Context, pendingBefore time.Time, maxAttempts, limit int) ([]*models.Payment, error)
	MarkSynced(ctx context.Context, reference, invoiceID string) error
	MarkSyncFailed(ctx context.Context, reference, syncErr string) error
}

type Backend interface {
	CreateSubscription(ctx context.Context, rec backend.SubscriptionRecord) (string, error)
}

// Options параметры прохода.
type Options struct {
	Interval time.Duration
	// Grace возраст записи, после которого pending считается брошенным.
	Grace     time.Duration
	BatchSize int
	// MaxAttempts после стольких неудач запись оставляется для ручного разбора.
	MaxAttempts int
}

type ReconcileService struct {
	ledger  Ledger
	backend Backend
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

// NewReconcileService создает новый экземпляр ReconcileService.
func NewReconcileService(ledger Ledger, b Backend, opts Options, log *slog.Logger) *ReconcileService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 12
	}
	return &ReconcileService{
		ledger:  ledger,
		backend: b,
		opts:    opts,
		log:     log.With(slog.String("component", "reconcile")),
		now:     time.Now,
	}
}

// Run выполняет проход сразу и затем раз в Interval до отмены ctx.
func (s *ReconcileService) Run(ctx context.Context) {
	s.RunOnce(ctx)
	if s.opts.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce обрабатывает одну пачку и возвращает число успешно переданных оплат.
// Свежие pending не выбираются: их ещё может синхронизировать обработчик колбэка.
func (s *ReconcileService) RunOnce(ctx context.Context) int {
	pendingBefore := s.now().Add(-s.opts.Grace)
	payments, err := s.ledger.ListUnsynced(ctx, pendingBefore, s.opts.MaxAttempts, s.opts.BatchSize)
	if err != nil {
		s.log.Error("failed to list unsynced payments", sl.Err(err))
		return 0
	}

	synced := 0
	for _, p := range payments {
		if s.retry(ctx, p) {
			synced++
		}
	}
	if len(payments) > 0 {
		s.log.Info("reconcile pass finished", slog.Int("candidates", len(payments)), slog.Int("synced", synced))
	}
	return synced
}

func (s *ReconcileService) retry(ctx context.Context, p *models.Payment) bool {
	log := s.log.With(slog.String("payment_reference", p.PaymentReference))

	period, err := pricing.ParsePeriod(p.BillingPeriod)
	if err != nil {
		log.Error("ledger row has unknown billing period", sl.Err(err))
		return false
	}

	invoiceID, err := s.backend.CreateSubscription(ctx, backend.SubscriptionRecord{
		UserID:            p.UserID,
		ProductID:         p.PlanID,
		TransactionNumber: p.PaymentReference,
		PriceUnit:         p.Total,
		PlanID:            period.BackendPlanID(),
	})
	if err != nil {
		log.Warn("subscription sync retry failed", sl.Err(err), slog.Int("attempt", p.Attempts+1))
		if p.Attempts+1 >= s.opts.MaxAttempts {
			log.Error("payment sync attempts exhausted, manual review required")
		}
		if err := s.ledger.MarkSyncFailed(ctx, p.PaymentReference, err.Error()); err != nil {
			log.Error("failed to mark payment sync failure", sl.Err(err))
		}
		return false
	}

	if err := s.ledger.MarkSynced(ctx, p.PaymentReference, invoiceID); err != nil {
		log.Error("failed to mark payment synced", sl.Err(err))
		return false
	}
	log.Info("payment synced on retry", slog.String("invoice_id", invoiceID))
	return true
}
