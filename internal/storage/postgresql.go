// Package storage реализует платёжный журнал витрины на PostgreSQL.
// Каждый колбэк платёжного виджета фиксируется здесь до обращения к backend,
// а результат синхронизации дописывается в ту же запись.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/hr-storefront/internal/models"
)

var (
	// ErrPaymentExists платёж с таким идентификатором уже записан.
	ErrPaymentExists = errors.New("payment already recorded")
	// ErrPaymentNotFound платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
)

const (
	// retryBackoffBase задержка после первой неудачи, дальше она удваивается.
	retryBackoffBase = time.Minute
	retryBackoffMax  = 6 * time.Hour
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// SavePayment записывает новый платёж со статусом pending и возвращает его ID.
func (s *Storage) SavePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "storage.SavePayment"

	query := `INSERT INTO payments (session_id, payment_reference, user_id, plan_id,
				  total, billing_period, sync_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (payment_reference) DO NOTHING
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		p.SessionID, p.PaymentReference, p.UserID, p.PlanID,
		p.Total, p.BillingPeriod, models.SyncPending).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ErrPaymentExists)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// MarkSynced отмечает успешную передачу платежа в backend.
func (s *Storage) MarkSynced(ctx context.Context, reference, invoiceID string) error {
	const op = "storage.MarkSynced"
	query := `UPDATE payments
			  SET sync_status = $1, invoice_id = $2, sync_error = '', updated_at = NOW()
			  WHERE payment_reference = $3`
	return s.update(ctx, op, query, models.SyncOK, invoiceID, reference)
}

// MarkSyncFailed сохраняет ошибку синхронизации, увеличивает счётчик попыток
// и откладывает следующий повтор с экспоненциальной задержкой.
func (s *Storage) MarkSyncFailed(ctx context.Context, reference, syncErr string) error {
	const op = "storage.MarkSyncFailed"
	query := `UPDATE payments
			  SET sync_status = $1, sync_error = $2, updated_at = NOW(),
				  next_attempt_at = NOW() + INTERVAL '1 second' *
					  LEAST($4::float8 * POWER(2, LEAST(attempts, 20)), $5::float8),
				  attempts = attempts + 1
			  WHERE payment_reference = $3`
	return s.update(ctx, op, query, models.SyncFailed, syncErr, reference,
		retryBackoffBase.Seconds(), retryBackoffMax.Seconds())
}

func (s *Storage) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	return nil
}

const paymentColumns = `id, session_id, payment_reference, user_id, plan_id, total,
	billing_period, sync_status, invoice_id, sync_error, attempts, next_attempt_at,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var status string
	err := row.Scan(&p.ID, &p.SessionID, &p.PaymentReference, &p.UserID, &p.PlanID, &p.Total,
		&p.BillingPeriod, &status, &p.InvoiceID, &p.SyncError, &p.Attempts, &p.NextAttemptAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SyncStatus = models.SyncStatus(status)
	return &p, nil
}

// PaymentByReference возвращает платёж по идентификатору провайдера.
func (s *Storage) PaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	const op = "storage.PaymentByReference"
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_reference = $1`, reference)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListUnsynced возвращает платежи, готовые к повторной передаче в backend:
// срок отложенного повтора наступил, лимит попыток не исчерпан, а pending
// не обновлялся с pendingBefore. Дольше всех ждущие идут первыми.
func (s *Storage) ListUnsynced(ctx context.Context, pendingBefore time.Time, maxAttempts, limit int) ([]*models.Payment, error) {
	const op = "storage.ListUnsynced"
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE sync_status <> $1
		   AND next_attempt_at <= NOW()
		   AND attempts < $2
		   AND (sync_status <> $3 OR updated_at <= $4)
		 ORDER BY next_attempt_at, id
		 LIMIT $5`, models.SyncOK, maxAttempts, models.SyncPending, pendingBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
