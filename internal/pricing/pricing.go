// Package pricing расчёт стоимости подписки по выбранному тарифу.
//
// Все суммы хранятся как float64 в рупиях. Округление выполняется только при переводе
// итоговой суммы в минимальные единицы валюты (пайсы) для платёжного виджета.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// AnnualDiscountRate скидка при годовой оплате.
	AnnualDiscountRate = 0.10
	// TaxRate ставка GST.
	TaxRate = 0.18
	// FallbackUnitRate ставка за сотрудника, если цену тарифа не удалось разобрать.
	FallbackUnitRate = 50.0

	monthsPerYear = 12
)

var (
	// ErrInvalidEmployeeCount число сотрудников меньше одного.
	ErrInvalidEmployeeCount = errors.New("employee count must be at least 1")
	// ErrInvalidPeriod неизвестный период оплаты.
	ErrInvalidPeriod = errors.New("unknown billing period")
)

// BillingPeriod период оплаты.
type BillingPeriod string

const (
	Monthly BillingPeriod = "monthly"
	Annual  BillingPeriod = "annual"
)

// ParsePeriod разбирает период из запроса.
func ParsePeriod(s string) (BillingPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return Monthly, nil
	case "annual", "annually", "yearly", "year":
		return Annual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// BackendPlanID имя периода, которое ожидает backend при создании подписки.
func (p BillingPeriod) BackendPlanID() string {
	if p == Annual {
		return "Yearly"
	}
	return "Monthly"
}

// Months число оплачиваемых месяцев.
func (p BillingPeriod) Months() int {
	if p == Annual {
		return monthsPerYear
	}
	return 1
}

// Selection выбор пользователя на экране оформления.
type Selection struct {
	PlanID    string        `json:"plan_id"`
	UnitRate  float64       `json:"unit_rate"`
	Employees int           `json:"employees"`
	Period    BillingPeriod `json:"period"`
}

// Quote результат расчёта.
type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ComputeTotal чистая функция расчёта стоимости.
//
//	subtotal = unitRate × employees × months
//	discount = 10% от subtotal при годовой оплате
//	tax      = 18% от (subtotal − discount)
//	total    = subtotal − discount + tax
func ComputeTotal(sel Selection) (Quote, error) {
	if sel.Employees < 1 {
		return Quote{}, ErrInvalidEmployeeCount
	}
	if sel.Period != Monthly && sel.Period != Annual {
		return Quote{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, sel.Period)
	}

	subtotal := sel.UnitRate * float64(sel.Employees) * float64(sel.Period.Months())
	var discount float64
	if sel.Period == Annual {
		discount = subtotal * AnnualDiscountRate
	}
	tax := (subtotal - discount) * TaxRate

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal - discount + tax,
	}, nil
}

// MinorUnits переводит сумму в минимальные единицы валюты: round(total × 100).
func MinorUnits(total float64) int64 {
	return int64(math.Round(total * 100))
}

// Display копия расчёта, округлённая до двух знаков для показа пользователю.
func (q Quote) Display() Quote {
	return Quote{
		Subtotal: round2(q.Subtotal),
		Discount: round2(q.Discount),
		Tax:      round2(q.Tax),
		Total:    round2(q.Total),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	priceNoise  = regexp.MustCompile(`[^\d.\-]`)
	rangeDashes = strings.NewReplacer("–", "-", "—", "-")
)

// UnitRateFromPrice выводит ставку за сотрудника из строки цены тарифа.
// "₹35 – ₹60" даёт середину диапазона 47.5, "₹120" даёт 120,
// нераспознанная или нулевая цена даёт FallbackUnitRate.
func UnitRateFromPrice(price string) float64 {
	clean := priceNoise.ReplaceAllString(rangeDashes.Replace(price), "")

	low, high := parseOrZero(clean), parseOrZero(clean)
	if strings.Contains(clean, "-") {
		parts := strings.Split(clean, "-")
		low, high = parseOrZero(parts[0]), parseOrZero(parts[1])
	}

	rate := (low + high) / 2
	if rate == 0 || math.IsNaN(rate) {
		return FallbackUnitRate
	}
	return rate
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
