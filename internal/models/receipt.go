package models

import "time"

// ReceiptEvent событие checkout.confirmed: оплата подтверждена, пользователю
// нужно отправить квитанцию.
type ReceiptEvent struct {
	SessionID        string    `json:"session_id"`
	PaymentReference string    `json:"payment_reference"`
	Email            string    `json:"email"`
	CustomerName     string    `json:"customer_name"`
	PlanName         string    `json:"plan_name"`
	Employees        int       `json:"employees"`
	BillingPeriod    string    `json:"billing_period"`
	Subtotal         float64   `json:"subtotal"`
	Discount         float64   `json:"discount"`
	Tax              float64   `json:"tax"`
	Total            float64   `json:"total"`
	Currency         string    `json:"currency"`
	InvoiceID        string    `json:"invoice_id,omitempty"`
	SyncWarning      bool      `json:"sync_warning"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}
