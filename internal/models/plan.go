// Package models содержит доменные структуры витрины: тарифы каталога,
// записи платёжного журнала и события для почтового воркера.
package models

// Plan тариф в том виде, в каком его показывает витрина.
type Plan struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	IdealFor  string   `json:"ideal_for"`
	ListPrice float64  `json:"list_price"` // Цена за сотрудника в месяц
	Price     string   `json:"price"`      // Отображаемая цена, например "₹35"
	Fee       string   `json:"fee"`        // Разовый платёж за внедрение
	Highlight bool     `json:"highlight"`
	Modules   []string `json:"modules"`
	UnitRate  float64  `json:"unit_rate"` // Ставка, используемая при расчёте
}
