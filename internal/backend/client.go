// Package backend типизированный клиент REST API HR-платформы.
// Все запросы проходят через шлюз с автоматической авторизацией.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/hr-storefront/internal/gateway"
)

// ErrCompanyNotFound backend не нашёл компанию по GSTIN.
var ErrCompanyNotFound = errors.New("company not found for gst number")

// Error отказ backend, пришедший в теле успешного ответа ("status": "error").
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Op + ": backend reported an error"
	}
	return e.Op + ": " + e.Message
}

// Message возвращает человекочитаемое сообщение backend из цепочки ошибок, если оно есть.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	var se *gateway.StatusError
	if errors.As(err, &se) {
		return se.Message()
	}
	return ""
}

// Doer выполняет авторизованный запрос к backend.
type Doer interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Client клиент backend.
type Client struct {
	doer Doer
}

// New создаёт клиент поверх шлюза.
func New(doer Doer) *Client {
	return &Client{doer: doer}
}

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	resp, err := c.doer.Do(ctx, gateway.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err == nil && strings.EqualFold(env.Status, "error") {
		return &Error{Op: op, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := resp.DecodeJSON(out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, op, path string, body any) ([]byte, error) {
	resp, err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Header: http.Header{"Accept": []string{"application/pdf"}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%s: empty document", op)
	}
	return resp.Body, nil
}

// Login проверяет учётные данные пользователя.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "backend.Login"
	var out LoginResult
	err := c.call(ctx, op, http.MethodPost, "/api/login", nil,
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	if out.UserID == "" {
		msg := out.Message
		if msg == "" {
			msg = "login failed"
		}
		return nil, &Error{Op: op, Message: msg}
	}
	return &out, nil
}

// CheckGST ищет компанию по GSTIN.
func (c *Client) CheckGST(ctx context.Context, gstin string) (*CompanyDetails, error) {
	const op = "backend.CheckGST"
	var out struct {
		Status         string           `json:"status"`
		Message        string           `json:"message"`
		CompanyDetails []CompanyDetails `json:"company_details"`
	}
	err := c.call(ctx, op, http.MethodPost, "/api/check_gstnumber", nil,
		map[string]string{"gst_number": gstin}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "ok" || len(out.CompanyDetails) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrCompanyNotFound)
	}
	return &out.CompanyDetails[0], nil
}

// Signup регистрирует клиента.
func (c *Client) Signup(ctx context.Context, reg Registration) error {
	const op = "backend.Signup"
	return c.call(ctx, op, http.MethodPost, "/api/user/signup", nil, reg, nil)
}

// ForgotPasswordRequest запускает сброс пароля: backend отправляет временный пароль на почту.
func (c *Client) ForgotPasswordRequest(ctx context.Context, email string) error {
	const op = "backend.ForgotPasswordRequest"
	return c.call(ctx, op, http.MethodPost, "/api/forgot-password/request", nil,
		map[string]string{"email": email}, nil)
}

// ForgotPasswordConfirm устанавливает новый пароль по временному.
func (c *Client) ForgotPasswordConfirm(ctx context.Context, reset PasswordReset) error {
	const op = "backend.ForgotPasswordConfirm"
	return c.call(ctx, op, http.MethodPost, "/api/forgot-password/confirm", nil, reset, nil)
}

// ListProducts возвращает тарифные продукты.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	const op = "backend.ListProducts"
	var out struct {
		Status string    `json:"status"`
		Data   []Product `json:"data"`
	}
	if err := c.call(ctx, op, http.MethodGet, "/api/Read/products", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return nil, &Error{Op: op, Message: "unexpected status " + strconv.Quote(out.Status)}
	}
	return out.Data, nil
}

// CreateSubscription сообщает backend о совершённой оплате.
// Возвращает идентификатор счёта, если backend его выдал.
func (c *Client) CreateSubscription(ctx context.Context, rec SubscriptionRecord) (string, error) {
	const op = "backend.CreateSubscription"
	var out struct {
		Data struct {
			InvoiceID FlexID `json:"invoice_id"`
		} `json:"data"`
	}
	if err := c.call(ctx, op, http.MethodPost, "/api/create/subscription", nil, rec, &out); err != nil {
		return "", err
	}
	return out.Data.InvoiceID.String(), nil
}

// DownloadInvoice скачивает PDF счёта, выставленного при оформлении подписки.
func (c *Client) DownloadInvoice(ctx context.Context, invoiceID string) ([]byte, error) {
	const op = "backend.DownloadInvoice"
	return c.download(ctx, op, "/api/invoice/download/", map[string]string{"invoice_id": invoiceID})
}

// DownloadInvoicePDF скачивает PDF счёта из истории подписок.
func (c *Client) DownloadInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	const op = "backend.DownloadInvoicePDF"
	return c.download(ctx, op, "/api/downloadInvoicePDF", map[string]string{"invoice_id": invoiceID})
}

// CustomerSubscriptions возвращает подписки клиента.
func (c *Client) CustomerSubscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	const op = "backend.CustomerSubscriptions"
	var out struct {
		Data []Subscription `json:"data"`
	}
	q := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	if err := c.call(ctx, op, http.MethodGet, "/api/getCustomerSubscriptions", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UserContacts возвращает контакты пользователя.
func (c *Client) UserContacts(ctx context.Context, userID int64) ([]Contact, error) {
	const op = "backend.UserContacts"
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	q := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	if err := c.call(ctx, op, http.MethodGet, "/api/getUserContacts", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// SendOTP просит backend отправить одноразовый код.
func (c *Client) SendOTP(ctx context.Context, req OTPRequest) error {
	const op = "backend.SendOTP"
	req.OTP = ""
	return c.call(ctx, op, http.MethodPost, "/api/send-otp", nil, req, nil)
}

// VerifyOTP проверяет одноразовый код.
func (c *Client) VerifyOTP(ctx context.Context, req OTPRequest) error {
	const op = "backend.VerifyOTP"
	return c.call(ctx, op, http.MethodPost, "/api/verify-otp", nil, req, nil)
}

// UpdateUserContact изменяет контакт пользователя.
func (c *Client) UpdateUserContact(ctx context.Context, userID, contactID int64, upd ContactUpdate) error {
	const op = "backend.UpdateUserContact"
	q := url.Values{
		"user_id":    {strconv.FormatInt(userID, 10)},
		"contact_id": {strconv.FormatInt(contactID, 10)},
	}
	return c.call(ctx, op, http.MethodPut, "/api/updateUserContact", q, upd, nil)
}

// UpdateProfile изменяет реквизиты компании пользователя.
func (c *Client) UpdateProfile(ctx context.Context, userID int64, p Profile) error {
	const op = "backend.UpdateProfile"
	q := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	return c.call(ctx, op, http.MethodPut, "/api/user/updateUserProfile", q, p, nil)
}

// CreateLead создаёт заявку с формы обратной связи.
func (c *Client) CreateLead(ctx context.Context, lead Lead) error {
	const op = "backend.CreateLead"
	return c.call(ctx, op, http.MethodPost, "/api/lead/create", nil, lead, nil)
}
