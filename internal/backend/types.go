package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString строка, которую backend иногда присылает как false, число или null.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = ""
	case bytes.Equal(data, []byte("true")):
		*f = "true"
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}

// FlexID идентификатор, приходящий то числом, то строкой.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexID(s)
	return nil
}

func (f FlexID) String() string { return string(f) }

// Int64 возвращает числовое значение идентификатора или 0.
func (f FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// LoginResult ответ на вход.
type LoginResult struct {
	UserID  FlexID `json:"user_id"`
	Message string `json:"message"`
}

// Country страна из справочника backend.
type Country struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// CompanyDetails реквизиты компании, найденные по GSTIN.
type CompanyDetails struct {
	Name    string  `json:"name"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	StateID int64   `json:"state_id"`
	Country Country `json:"country_id"`
}

// Registration данные регистрации клиента.
type Registration struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyAddress string `json:"company_address"`
	CompanyName    string `json:"company_name"`
	GSTNumber      string `json:"gst_number"`
	Mobile         string `json:"mobile"`
	Email          string `json:"email"`
	Designation    string `json:"designation"`
	Street         string `json:"street"`
	Street2        string `json:"street2"`
	Pincode        string `json:"pincode"`
	StateID        int64  `json:"state_id"`
	CountryID      int64  `json:"country_id"`
	City           string `json:"city"`
	Password       string `json:"password"`
}

// PasswordReset подтверждение сброса пароля.
type PasswordReset struct {
	Email           string `json:"email"`
	TempPassword    string `json:"temp_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Product тарифный продукт из каталога backend.
type Product struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	ListPrice         float64 `json:"list_price"`
	Description       string  `json:"description"`
	IdealFor          string  `json:"ideal_for"`
	Fees              float64 `json:"fees"`
	DurationPeriodsNo int     `json:"duration_periods_no"`
	Duration          string  `json:"duration"`
	IsHighlight       bool    `json:"is_highlight"`
}

// SubscriptionRecord запись о совершённой оплате для backend.
type SubscriptionRecord struct {
	UserID            int64   `json:"user_id"`
	ProductID         string  `json:"product_id"`
	TransactionNumber string  `json:"transection_number"`
	PriceUnit         float64 `json:"price_unit"`
	PlanID            string  `json:"plan_id"`
}

// SubscriptionProduct строка подписки.
type SubscriptionProduct struct {
	ProductID   int64   `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// Subscription подписка клиента.
type Subscription struct {
	SubscriptionID    int64                 `json:"subscription_id"`
	OrderNumber       string                `json:"order_number"`
	CustomerID        int64                 `json:"customer_id"`
	CustomerName      string                `json:"customer_name"`
	OrderDate         string                `json:"order_date"`
	NextInvoiceDate   FlexString            `json:"next_invoice_date"`
	RecurringPlanName string                `json:"recurring_plan_name"`
	Status            FlexString            `json:"status"`
	TotalAmount       float64               `json:"total_amount"`
	Currency          string                `json:"currency"`
	Products          []SubscriptionProduct `json:"products"`
	InvoiceID         FlexID                `json:"invoice_id,omitempty"`
}

// Contact контакт пользователя.
type Contact struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       FlexString `json:"email"`
	Mobile      FlexString `json:"mobile"`
	Phone       FlexString `json:"phone"`
	JobPosition FlexString `json:"job_position"`
}

// ContactUpdate изменяемые поля контакта.
type ContactUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Function string `json:"function"`
}

// OTPRequest запрос на отправку или проверку одноразового кода.
type OTPRequest struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	OTP    string `json:"otp,omitempty"`
}

// Profile редактируемые поля профиля компании.
type Profile struct {
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	Street         string `json:"street"`
	Street2        string `json:"street2,omitempty"`
	City           string `json:"city"`
	StateID        int64  `json:"state_id"`
	CountryID      int64  `json:"country_id"`
	Pincode        string `json:"pincode"`
}

// Lead заявка с формы обратной связи.
type Lead struct {
	CompanyName  string `json:"company_name"`
	Email        string `json:"email"`
	ContactName  string `json:"contact_name"`
	GSTNumber    string `json:"gst_number"`
	MobileNumber string `json:"mobile_number"`
	Subject      string `json:"subject"`
}
