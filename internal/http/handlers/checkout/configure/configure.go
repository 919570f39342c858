// Package configure пересчитывает стоимость при изменении числа сотрудников или периода оплаты.
package configure

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/failure"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/validate"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
)

type Request struct {
	Employees     int    `json:"employees" validate:"required,min=1,lte=100000"`
	BillingPeriod string `json:"billing_period"`
}

type Service interface {
	Configure(ctx context.Context, userID int64, id string, employees int, period pricing.BillingPeriod) (*checkout.View, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validate.New()}
}

// ServeHTTP godoc
// @Summary Настройка заказа
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID сессии"
// @Param request body Request true "Число сотрудников и период"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /checkout/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.configure"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	var period pricing.BillingPeriod
	if req.BillingPeriod != "" {
		p, err := pricing.ParsePeriod(req.BillingPeriod)
		if err != nil {
			failure.Render(w, r, log, err)
			return
		}
		period = p
	}

	view, err := h.service.Configure(r.Context(), userID, chi.URLParam(r, "id"), req.Employees, period)
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(view))
}
