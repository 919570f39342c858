// Package checkout сценарий подтверждения покупки: выбор тарифа, расчёт стоимости,
// открытие платёжного виджета, обработка его колбэка, синхронизация с backend
// и выдача счёта.
//
// Колбэк виджета всегда приводит к подтверждению: ошибка синхронизации с backend
// превращается в состояние confirmed_with_sync_warning и никогда не возвращается
// вызывающему.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/config"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/metrics"
	"github.com/magabrotheeeer/hr-storefront/internal/models"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
	"github.com/magabrotheeeer/hr-storefront/internal/services/catalog"
	"github.com/magabrotheeeer/hr-storefront/internal/storage"
)

const (
	// MessageMissingInvoiceID сообщение, когда backend не выдал номер счёта.
	MessageMissingInvoiceID = "Invoice ID is missing. Please check your email for the invoice."
	// MessageInvoiceDownloadFailed сообщение при ошибке скачивания счёта.
	MessageInvoiceDownloadFailed = "Failed to download invoice. Please try again later."
	// PricingRedirect куда отправлять пользователя без выбранного тарифа.
	PricingRedirect = "/pricing"

	defaultEmployees = 50
)

var (
	ErrNoSelection       = errors.New("no plan selected")
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrInvalidTransition = errors.New("operation not allowed in current checkout state")
	ErrMissingReference  = errors.New("payment reference is required")
	ErrMissingInvoiceID  = errors.New("invoice id is missing")
	ErrInvoiceDownload   = errors.New("invoice download failed")
	ErrNotConfirmed      = errors.New("checkout is not confirmed")
)

type Catalog interface {
	Plan(ctx context.Context, id string) (*models.Plan, error)
}

type Ledger interface {
	SavePayment(ctx context.Context, p models.Payment) (int64, error)
	PaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	MarkSynced(ctx context.Context, reference, invoiceID string) error
	MarkSyncFailed(ctx context.Context, reference, syncErr string) error
}

type Backend interface {
	CreateSubscription(ctx context.Context, rec backend.SubscriptionRecord) (string, error)
	DownloadInvoice(ctx context.Context, invoiceID string) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type Renderer interface {
	Generate(ev models.ReceiptEvent) ([]byte, error)
}

// Dependencies внешние компоненты сценария.
type Dependencies struct {
	Store     SessionStore
	Catalog   Catalog
	Ledger    Ledger
	Backend   Backend
	Publisher Publisher
	Renderer  Renderer
}

type Service struct {
	deps    Dependencies
	payment config.Payment
	opts    config.Checkout
	log     *slog.Logger
	now     func() time.Time

	// mu сериализует чтение-проверку-запись сессий; сетевые вызовы выполняются без него.
	mu sync.Mutex
}

func New(deps Dependencies, payment config.Payment, opts config.Checkout, log *slog.Logger) *Service {
	return &Service{
		deps:    deps,
		payment: payment,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// View представление сессии для клиента. Суммы округлены для показа.
type View struct {
	ID               string                `json:"id"`
	State            State                 `json:"state"`
	Plan             models.Plan           `json:"plan"`
	Employees        int                   `json:"employees"`
	Period           pricing.BillingPeriod `json:"period"`
	Quote            pricing.Quote         `json:"quote"`
	PaymentReference string                `json:"payment_reference,omitempty"`
	InvoiceID        string                `json:"invoice_id,omitempty"`
	Warning          string                `json:"warning,omitempty"`
}

// Prefill данные покупателя для формы виджета.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Theme оформление виджета.
type Theme struct {
	Color string `json:"color"`
}

// WidgetOptions параметры открытия платёжного виджета.
type WidgetOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Confirmation итог обработки колбэка виджета.
type Confirmation struct {
	SessionID        string  `json:"session_id"`
	PaymentReference string  `json:"payment_reference"`
	State            State   `json:"state"`
	InvoiceID        string  `json:"invoice_id,omitempty"`
	Total            float64 `json:"total"`
	Warning          string  `json:"warning,omitempty"`
}

// Document файл для скачивания.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

const syncWarning = "Payment received. Your subscription is being activated; " +
	"the invoice will be sent to your email."

// Start открывает сессию для выбранного тарифа. Без тарифа расчёт не выполняется.
func (s *Service) Start(ctx context.Context, cust Customer, planID string, employees int, period pricing.BillingPeriod) (*View, error) {
	const op = "checkout.Start"
	log := s.log.With(sl.Op(op))

	if strings.TrimSpace(planID) == "" {
		return nil, ErrNoSelection
	}
	plan, err := s.deps.Catalog.Plan(ctx, planID)
	if errors.Is(err, catalog.ErrPlanNotFound) {
		log.Info("unknown plan selected", slog.String("plan_id", planID))
		return nil, ErrNoSelection
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if employees == 0 {
		employees = defaultEmployees
	}
	if period == "" {
		period = pricing.Monthly
	}

	now := s.now()
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       cust.UserID,
		Email:        cust.Email,
		CustomerName: cust.Name,
		Contact:      cust.Contact,
		Plan:         *plan,
		State:        StatePlanSelected,
		CreatedAt:    now,
		UpdatedAt:    now,
		Selection: pricing.Selection{
			PlanID:    plan.ID,
			UnitRate:  plan.UnitRate,
			Employees: employees,
			Period:    period,
		},
	}

	quote, err := pricing.ComputeTotal(sess.Selection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sess.Quote = quote
	sess.State = StateConfiguring

	if err := s.deps.Store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("checkout started", slog.String("session_id", sess.ID), slog.String("plan_id", plan.ID))
	return s.view(sess), nil
}

// Get возвращает текущее представление сессии.
func (s *Service) Get(ctx context.Context, userID int64, id string) (*View, error) {
	const op = "checkout.Get"
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.view(sess), nil
}

// Configure пересчитывает стоимость при изменении числа сотрудников или периода.
// Допустим и после открытия виджета: закрытие виджета возвращает к настройке.
func (s *Service) Configure(ctx context.Context, userID int64, id string, employees int, period pricing.BillingPeriod) (*View, error) {
	const op = "checkout.Configure"
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch sess.State {
	case StatePlanSelected, StateConfiguring, StateAwaitingPayment:
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, sess.State)
	}

	sel := sess.Selection
	sel.Employees = employees
	if period != "" {
		sel.Period = period
	}
	quote, err := pricing.ComputeTotal(sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess.Selection = sel
	sess.Quote = quote
	sess.State = StateConfiguring
	sess.PaymentStartedAt = time.Time{}
	if err := s.save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.view(sess), nil
}

// BeginPayment формирует параметры виджета. Сумма равна округлённому итогу в пайсах.
func (s *Service) BeginPayment(ctx context.Context, userID int64, id string) (*WidgetOptions, error) {
	const op = "checkout.BeginPayment"
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch sess.State {
	case StateConfiguring, StateAwaitingPayment:
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, sess.State)
	}

	quote, err := pricing.ComputeTotal(sess.Selection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sess.Quote = quote
	sess.State = StateAwaitingPayment
	sess.PaymentStartedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts := &WidgetOptions{
		Key:         s.payment.KeyID,
		Amount:      pricing.MinorUnits(quote.Total),
		Currency:    s.payment.Currency,
		Name:        s.payment.MerchantName,
		Description: strings.TrimSpace(s.payment.DescriptionPrefix + " " + sess.Plan.Name),
		Image:       s.payment.Image,
		Prefill: Prefill{
			Name:    firstNonEmpty(sess.CustomerName, s.payment.Prefill.Name),
			Email:   firstNonEmpty(sess.Email, s.payment.Prefill.Email),
			Contact: firstNonEmpty(sess.Contact, s.payment.Prefill.Contact),
		},
		Theme: Theme{Color: s.payment.ThemeColor},
	}
	s.log.Info("payment widget opened",
		slog.String("session_id", sess.ID), slog.Int64("amount", opts.Amount))
	return opts, nil
}

// OnPaymentCallback обрабатывает успешный колбэк виджета. Всегда завершается подтверждением.
func (s *Service) OnPaymentCallback(ctx context.Context, userID int64, id, reference string) (*Confirmation, error) {
	const op = "checkout.OnPaymentCallback"
	log := s.log.With(sl.Op(op), slog.String("session_id", id))

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrMissingReference
	}

	s.mu.Lock()
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.State.paid() {
		s.mu.Unlock()
		log.Info("duplicate payment callback ignored", slog.String("payment_reference", reference))
		return s.confirmation(sess), nil
	}
	if sess.State != StateAwaitingPayment && sess.State != StateAbandoned {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, sess.State)
	}

	// Оплата уже прошла: уход клиента со страницы не должен прерывать запись и синхронизацию.
	ctx, cancel := s.detach(ctx)
	defer cancel()

	sess.State = StateCallbackReceived
	sess.PaymentReference = reference
	if err := s.save(ctx, sess); err != nil {
		log.Error("failed to persist payment callback", sl.Err(err))
	}

	_, err = s.deps.Ledger.SavePayment(ctx, models.Payment{
		SessionID:        sess.ID,
		PaymentReference: reference,
		UserID:           sess.UserID,
		PlanID:           sess.Plan.ID,
		Total:            sess.Quote.Total,
		BillingPeriod:    string(sess.Selection.Period),
	})
	var recorded *models.Payment
	switch {
	case errors.Is(err, storage.ErrPaymentExists):
		log.Warn("payment already recorded", slog.String("payment_reference", reference))
		recorded = s.syncedPayment(ctx, log, sess.UserID, reference)
	case err != nil:
		log.Error("failed to record payment in ledger", sl.Err(err),
			slog.String("payment_reference", reference))
	}

	sess.State = StateSyncing
	if err := s.save(ctx, sess); err != nil {
		log.Error("failed to persist syncing state", sl.Err(err))
	}
	pending := *sess
	s.mu.Unlock()

	if recorded != nil {
		log.Info("payment already synced, reusing invoice", slog.String("invoice_id", recorded.InvoiceID))
		result := s.applySync(ctx, log, &pending, recorded.InvoiceID, nil)
		metrics.CheckoutPayments.WithLabelValues(string(result.State)).Inc()
		return s.confirmation(result), nil
	}

	invoiceID, syncErr := s.deps.Backend.CreateSubscription(ctx, backend.SubscriptionRecord{
		UserID:            pending.UserID,
		ProductID:         pending.Plan.ID,
		TransactionNumber: reference,
		PriceUnit:         pending.Quote.Total,
		PlanID:            pending.Selection.Period.BackendPlanID(),
	})

	result := s.applySync(ctx, log, &pending, invoiceID, syncErr)

	if syncErr != nil {
		if err := s.deps.Ledger.MarkSyncFailed(ctx, reference, syncErr.Error()); err != nil {
			log.Error("failed to mark payment sync failure", sl.Err(err))
		}
	} else if err := s.deps.Ledger.MarkSynced(ctx, reference, invoiceID); err != nil {
		log.Error("failed to mark payment synced", sl.Err(err))
	}

	metrics.CheckoutPayments.WithLabelValues(string(result.State)).Inc()
	s.publishReceipt(ctx, log, result)

	return s.confirmation(result), nil
}

// syncedPayment возвращает запись журнала, если платёж этого пользователя уже передан в backend.
func (s *Service) syncedPayment(ctx context.Context, log *slog.Logger, userID int64, reference string) *models.Payment {
	p, err := s.deps.Ledger.PaymentByReference(ctx, reference)
	if err != nil {
		log.Error("failed to load recorded payment", sl.Err(err), slog.String("payment_reference", reference))
		return nil
	}
	if p.UserID != userID {
		log.Warn("payment reference recorded for another user", slog.String("payment_reference", reference))
		return nil
	}
	if p.SyncStatus != models.SyncOK || p.InvoiceID == "" {
		return nil
	}
	return p
}

// detach отвязывает контекст от запроса и ограничивает его opts.SyncTimeout.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.opts.SyncTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.SyncTimeout)
}

// applySync применяет результат синхронизации, только если сессия всё ещё ждёт его.
func (s *Service) applySync(ctx context.Context, log *slog.Logger, pending *Session, invoiceID string, syncErr error) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncErr != nil {
		log.Warn("subscription sync failed, confirming with warning", sl.Err(syncErr))
	}

	current, found, err := s.deps.Store.Get(ctx, pending.ID)
	if err != nil {
		log.Error("failed to reload session after sync", sl.Err(err))
	}
	if found && current.State != StateSyncing {
		log.Info("session left syncing state, sync result not applied", slog.String("state", string(current.State)))
		return current
	}

	sess := pending
	if found {
		sess = current
	}
	sess.ConfirmedAt = s.now()
	if syncErr != nil {
		sess.State = StateConfirmedWithSyncWarning
		sess.SyncError = syncErr.Error()
	} else {
		sess.State = StateConfirmed
		sess.InvoiceID = invoiceID
	}
	if found {
		if err := s.save(ctx, sess); err != nil {
			log.Error("failed to persist confirmation", sl.Err(err))
		}
	}
	return sess
}

func (s *Service) publishReceipt(ctx context.Context, log *slog.Logger, sess *Session) {
	if !sess.State.Confirmed() {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, rabbitmq.RoutingCheckoutConfirmed, s.receiptEvent(sess)); err != nil {
		log.Error("failed to publish checkout confirmation", sl.Err(err))
	}
}

// DownloadInvoice скачивает счёт сессии. Без номера счёта запрос к backend не выполняется.
func (s *Service) DownloadInvoice(ctx context.Context, userID int64, id string) (*Document, error) {
	const op = "checkout.DownloadInvoice"

	s.mu.Lock()
	sess, err := s.load(ctx, userID, id)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if sess.InvoiceID == "" {
		metrics.InvoiceDownloads.WithLabelValues("missing_id").Inc()
		return nil, ErrMissingInvoiceID
	}

	body, err := s.deps.Backend.DownloadInvoice(ctx, sess.InvoiceID)
	if err != nil {
		metrics.InvoiceDownloads.WithLabelValues("failed").Inc()
		s.log.Error("invoice download failed", sl.Op(op), sl.Err(err),
			slog.String("invoice_id", sess.InvoiceID))
		return nil, ErrInvoiceDownload
	}
	metrics.InvoiceDownloads.WithLabelValues("ok").Inc()

	return &Document{
		Name:        "Invoice_" + sess.InvoiceID + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

// Receipt формирует PDF-квитанцию подтверждённой сессии.
func (s *Service) Receipt(ctx context.Context, userID int64, id string) (*Document, error) {
	const op = "checkout.Receipt"

	s.mu.Lock()
	sess, err := s.load(ctx, userID, id)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !sess.State.Confirmed() {
		return nil, ErrNotConfirmed
	}

	ev := s.receiptEvent(sess)
	body, err := s.deps.Renderer.Generate(ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Document{
		Name:        "Receipt_" + sess.PaymentReference + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

// Abandon закрывает неоплаченную сессию, когда пользователь уходит со страницы.
func (s *Service) Abandon(ctx context.Context, userID int64, id string) (*View, error) {
	const op = "checkout.Abandon"
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch sess.State {
	case StatePlanSelected, StateConfiguring, StateAwaitingPayment:
	case StateAbandoned:
		return s.view(sess), nil
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, sess.State)
	}
	sess.State = StateAbandoned
	if err := s.save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.view(sess), nil
}

// load читает сессию пользователя. Вызывается под s.mu.
// Ожидание колбэка дольше payment_wait_timeout переводит сессию в abandoned.
func (s *Service) load(ctx context.Context, userID int64, id string) (*Session, error) {
	sess, found, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}

	if sess.State == StateAwaitingPayment && s.opts.PaymentWaitTimeout > 0 &&
		!sess.PaymentStartedAt.IsZero() && s.now().Sub(sess.PaymentStartedAt) > s.opts.PaymentWaitTimeout {
		sess.State = StateAbandoned
		if err := s.save(ctx, sess); err != nil {
			s.log.Error("failed to persist abandoned session", sl.Err(err), slog.String("session_id", sess.ID))
		}
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	return s.deps.Store.Save(ctx, sess)
}

func (s *Service) view(sess *Session) *View {
	v := &View{
		ID:               sess.ID,
		State:            sess.State,
		Plan:             sess.Plan,
		Employees:        sess.Selection.Employees,
		Period:           sess.Selection.Period,
		Quote:            sess.Quote.Display(),
		PaymentReference: sess.PaymentReference,
		InvoiceID:        sess.InvoiceID,
	}
	if sess.State == StateConfirmedWithSyncWarning {
		v.Warning = syncWarning
	}
	return v
}

func (s *Service) confirmation(sess *Session) *Confirmation {
	c := &Confirmation{
		SessionID:        sess.ID,
		PaymentReference: sess.PaymentReference,
		State:            sess.State,
		InvoiceID:        sess.InvoiceID,
		Total:            sess.Quote.Total,
	}
	if sess.State == StateConfirmedWithSyncWarning {
		c.Warning = syncWarning
	}
	return c
}

func (s *Service) receiptEvent(sess *Session) models.ReceiptEvent {
	q := sess.Quote.Display()
	return models.ReceiptEvent{
		SessionID:        sess.ID,
		PaymentReference: sess.PaymentReference,
		Email:            sess.Email,
		CustomerName:     sess.CustomerName,
		PlanName:         sess.Plan.Name,
		Employees:        sess.Selection.Employees,
		BillingPeriod:    string(sess.Selection.Period),
		Subtotal:         q.Subtotal,
		Discount:         q.Discount,
		Tax:              q.Tax,
		Total:            q.Total,
		Currency:         s.payment.Currency,
		InvoiceID:        sess.InvoiceID,
		SyncWarning:      sess.State == StateConfirmedWithSyncWarning,
		ConfirmedAt:      sess.ConfirmedAt,
	}
}

// UserMessage текст для пользователя по ошибке скачивания счёта.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingInvoiceID):
		return MessageMissingInvoiceID
	case errors.Is(err, ErrInvoiceDownload):
		return MessageInvoiceDownloadFailed
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
