// Package sender отправляет покупателю письмо с PDF-квитанцией после подтверждения оплаты.
package sender

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/magabrotheeeer/hr-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/smtp"
	"github.com/magabrotheeeer/hr-storefront/internal/models"
	"github.com/magabrotheeeer/hr-storefront/internal/receipt"
)

// ErrNoRecipient в событии нет адреса покупателя.
var ErrNoRecipient = errors.New("receipt event has no recipient")

type Transport interface {
	Connect() (smtp.Client, error)
	GetSMTPUser() string
}

type Renderer interface {
	Generate(ev models.ReceiptEvent) ([]byte, error)
}

type SenderService struct {
	transport Transport
	renderer  Renderer
	merchant  string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport Transport, renderer Renderer, merchant string, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		renderer:  renderer,
		merchant:  merchant,
		log:       log,
	}
}

// HandleReceipt обрабатывает событие checkout.confirmed из очереди.
// Ошибки разбора и рендеринга неустранимы и помечаются rabbitmq.Permanent.
func (s *SenderService) HandleReceipt(body []byte) error {
	const op = "sender.HandleReceipt"
	log := s.log.With(sl.Op(op))

	var ev models.ReceiptEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return rabbitmq.Permanent(fmt.Errorf("error unmarshalling message: %w", err))
	}
	if ev.Email == "" {
		log.Warn("receipt event without email", slog.String("session_id", ev.SessionID))
		return rabbitmq.Permanent(ErrNoRecipient)
	}

	pdf, err := s.renderer.Generate(ev)
	if err != nil {
		log.Error("failed to render receipt", sl.Err(err))
		return rabbitmq.Permanent(fmt.Errorf("%s: %w", op, err))
	}

	msg, err := s.composeReceipt(ev, pdf)
	if err != nil {
		return rabbitmq.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	if err := s.sendEmail([]string{ev.Email}, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("receipt sent", slog.String("session_id", ev.SessionID),
		slog.String("payment_reference", ev.PaymentReference))
	return nil
}

func (s *SenderService) composeReceipt(ev models.ReceiptEvent, pdf []byte) ([]byte, error) {
	subject := fmt.Sprintf("%s: payment received for %s", s.merchant, ev.PlanName)
	name := ev.CustomerName
	if name == "" {
		name = "there"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\r\n\r\n", name)
	fmt.Fprintf(&text, "Thank you for subscribing to %s. We received your payment %s of %s %.2f.\r\n",
		ev.PlanName, ev.PaymentReference, currencyOrDefault(ev.Currency), ev.Total)
	if ev.SyncWarning {
		text.WriteString("Your subscription is being activated. The tax invoice will follow in a separate email.\r\n")
	} else if ev.InvoiceID != "" {
		fmt.Fprintf(&text, "Your invoice number is %s.\r\n", ev.InvoiceID)
	}
	text.WriteString("\r\nThe payment receipt is attached.\r\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + ev.Email,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + mw.Boundary(),
		"",
		"",
	}
	buf.WriteString(strings.Join(header, "\r\n"))

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="UTF-8"`},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(text.String())); err != nil {
		return nil, err
	}

	filename := receipt.FileName(ev)
	attach, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`application/pdf; name="` + filename + `"`},
		"Content-Disposition":       {`attachment; filename="` + filename + `"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(attach, pdf); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines пишет base64 строками по 76 символов, как требует RFC 2045.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func (s *SenderService) sendEmail(to []string, msg []byte) error {
	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write(msg); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}
	return nil
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "INR"
	}
	return c
}
