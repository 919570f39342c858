package models

import "time"

// SyncStatus состояние передачи оплаты в backend.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncOK      SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Payment запись платёжного журнала. Создаётся при получении колбэка виджета
// до любых обращений к backend, поэтому факт оплаты не теряется.
type Payment struct {
	ID               int64      // Идентификатор записи
	SessionID        string     // Сессия оформления
	PaymentReference string     // Идентификатор платежа от платёжного провайдера
	UserID           int64      // Пользователь backend
	PlanID           string     // Тариф
	Total            float64    // Итоговая сумма без округления
	BillingPeriod    string     // monthly или annual
	SyncStatus       SyncStatus // Состояние синхронизации
	InvoiceID        string     // Счёт, выданный backend
	SyncError        string     // Текст последней ошибки синхронизации
	Attempts         int        // Число неудачных попыток синхронизации
	NextAttemptAt    time.Time  // Раньше этого момента повтор не выполняется
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
