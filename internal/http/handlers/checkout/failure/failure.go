// Package failure переводит ошибки сценария оформления в HTTP-ответы.
package failure

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/gateway"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
)

// NoSelection ответ, когда тариф не выбран: интерфейс уводит пользователя на страницу цен.
type NoSelection struct {
	State    checkout.State `json:"state" example:"no_selection"`
	Redirect string         `json:"redirect" example:"/pricing"`
}

// Render пишет ответ для ошибки err.
func Render(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, body := resolve(err)
	if status >= http.StatusInternalServerError {
		log.Error("checkout request failed", sl.Err(err))
	} else {
		log.Info("checkout request rejected", sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func resolve(err error) (int, any) {
	switch {
	case errors.Is(err, checkout.ErrNoSelection):
		return http.StatusBadRequest, NoSelection{State: checkout.StateNoSelection, Redirect: checkout.PricingRedirect}
	case errors.Is(err, checkout.ErrSessionNotFound):
		return http.StatusNotFound, response.Error("checkout session not found")
	case errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict, response.Error("operation not allowed in current checkout state")
	case errors.Is(err, checkout.ErrNotConfirmed):
		return http.StatusConflict, response.Error("payment is not confirmed yet")
	case errors.Is(err, checkout.ErrMissingReference):
		return http.StatusBadRequest, response.Error("payment reference is required")
	case errors.Is(err, checkout.ErrMissingInvoiceID):
		return http.StatusNotFound, response.Error(checkout.MessageMissingInvoiceID)
	case errors.Is(err, checkout.ErrInvoiceDownload):
		return http.StatusBadGateway, response.Error(checkout.MessageInvoiceDownloadFailed)
	case errors.Is(err, pricing.ErrInvalidEmployeeCount):
		return http.StatusUnprocessableEntity, response.Error("number of employees must be at least 1")
	case errors.Is(err, pricing.ErrInvalidPeriod):
		return http.StatusUnprocessableEntity, response.Error("billing period must be monthly or annual")
	}

	var be *backend.Error
	var se *gateway.StatusError
	if errors.As(err, &be) || errors.As(err, &se) {
		status, msg := response.FromBackend(err)
		return status, response.Error(msg)
	}
	return http.StatusInternalServerError, response.Error("internal server error")
}
