// Package receipt формирует PDF-квитанцию об оплате подписки.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/magabrotheeeer/hr-storefront/internal/models"
)

var (
	colorBrand     = [3]int{228, 33, 40}
	colorTextDark  = [3]int{44, 62, 80}
	colorTextMuted = [3]int{127, 140, 141}
	colorTableAlt  = [3]int{255, 245, 245}
	colorWarning   = [3]int{241, 196, 15}
)

// Generator рисует квитанции.
type Generator struct {
	merchant string
}

// NewGenerator создаёт генератор квитанций от имени продавца.
func NewGenerator(merchant string) *Generator {
	return &Generator{merchant: merchant}
}

// FileName имя файла квитанции.
func FileName(ev models.ReceiptEvent) string {
	return "Receipt_" + ev.PaymentReference + ".pdf"
}

// Generate возвращает PDF квитанции.
func (g *Generator) Generate(ev models.ReceiptEvent) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetTitle("Payment receipt "+ev.PaymentReference, true)
	pdf.SetCreator(g.merchant, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(colorBrand[0], colorBrand[1], colorBrand[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	pdf.SetY(22)
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(colorBrand[0], colorBrand[1], colorBrand[2])
	pdf.CellFormat(0, 12, tr(g.merchant), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "Payment receipt", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	g.writeDetails(pdf, tr, ev)
	pdf.Ln(6)
	g.writeAmounts(pdf, ev)

	if ev.SyncWarning {
		pdf.Ln(8)
		pdf.SetFillColor(colorWarning[0], colorWarning[1], colorWarning[2])
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6,
			"Your payment was received. Your subscription is being activated; "+
				"the tax invoice will be sent to your email separately.", "", "L", true)
	}

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 5, "This receipt confirms payment only. It is not a tax invoice.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt.Generate: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeDetails(pdf *fpdf.Fpdf, tr func(string) string, ev models.ReceiptEvent) {
	confirmed := ev.ConfirmedAt
	if confirmed.IsZero() {
		confirmed = time.Now()
	}
	rows := [][2]string{
		{"Payment reference", ev.PaymentReference},
		{"Date", confirmed.UTC().Format("02 Jan 2006 15:04 MST")},
		{"Customer", ev.CustomerName},
		{"Email", ev.Email},
		{"Plan", ev.PlanName},
		{"Employees", fmt.Sprintf("%d", ev.Employees)},
		{"Billing", billingLabel(ev.BillingPeriod)},
	}
	if ev.InvoiceID != "" {
		rows = append(rows, [2]string{"Invoice", ev.InvoiceID})
	}

	pdf.SetFont("Arial", "", 11)
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(50, 7, r[0], "", 0, "L", false, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 7, tr(r[1]), "", 1, "L", false, 0, "")
	}
}

func (g *Generator) writeAmounts(pdf *fpdf.Fpdf, ev models.ReceiptEvent) {
	currency := ev.Currency
	if currency == "" {
		currency = "INR"
	}
	rows := []struct {
		label string
		value float64
		skip  bool
	}{
		{label: "Subtotal", value: ev.Subtotal},
		{label: "Annual discount (10%)", value: -ev.Discount, skip: ev.Discount == 0},
		{label: "GST (18%)", value: ev.Tax},
	}

	pdf.SetFont("Arial", "", 11)
	for i, r := range rows {
		if r.skip {
			continue
		}
		fill := i%2 == 1
		pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(120, 8, r.label, "", 0, "L", fill, 0, "")
		pdf.CellFormat(0, 8, money(currency, r.value), "", 1, "R", fill, 0, "")
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.SetTextColor(colorBrand[0], colorBrand[1], colorBrand[2])
	pdf.CellFormat(120, 10, "Total paid", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, money(currency, ev.Total), "T", 1, "R", false, 0, "")
}

func billingLabel(period string) string {
	switch strings.ToLower(period) {
	case "annual":
		return "Annual"
	case "monthly":
		return "Monthly"
	}
	return period
}

func money(currency string, v float64) string {
	return fmt.Sprintf("%s %.2f", currency, v)
}
