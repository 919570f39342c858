// Package validate настраивает валидатор запросов витрины.
package validate

import (
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hr-storefront/internal/services/account"
)

// New возвращает валидатор с правилом gstin.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
		return account.ValidGSTIN(account.NormalizeGSTIN(fl.Field().String()))
	})
	return v
}
