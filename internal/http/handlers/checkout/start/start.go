// Package start открывает сессию оформления для выбранного тарифа.
package start

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

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

// Request выбор тарифа. Пустой plan_id означает, что тариф не выбран.
type Request struct {
	PlanID        string `json:"plan_id"`
	Employees     int    `json:"employees" validate:"gte=0,lte=100000"`
	BillingPeriod string `json:"billing_period"`
	CustomerName  string `json:"customer_name" validate:"max=200"`
	Contact       string `json:"contact" validate:"max=20"`
}

type Service interface {
	Start(ctx context.Context, cust checkout.Customer, planID string, employees int, period pricing.BillingPeriod) (*checkout.View, error)
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
// @Summary Начать оформление
// @Description Открывает сессию оформления для тарифа и рассчитывает стоимость.
// @Description Без тарифа возвращает {"state":"no_selection","redirect":"/pricing"}.
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Тариф, число сотрудников и период"
// @Success 201 {object} response.Response
// @Failure 400 {object} failure.NoSelection "Тариф не выбран"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.start"

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

	view, err := h.service.Start(r.Context(), checkout.Customer{
		UserID:  userID,
		Email:   middlewarectx.EmailFrom(r.Context()),
		Name:    req.CustomerName,
		Contact: req.Contact,
	}, req.PlanID, req.Employees, period)
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(view))
}
