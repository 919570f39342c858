// Package callback принимает успешный колбэк платёжного виджета.
//
// Ответ всегда подтверждает оплату: сбой синхронизации с backend отражается
// состоянием confirmed_with_sync_warning, а не ошибкой.
package callback

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
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
)

// Request данные из обработчика успеха виджета.
type Request struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=128"`
}

type Service interface {
	OnPaymentCallback(ctx context.Context, userID int64, id, reference string) (*checkout.Confirmation, error)
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
// @Summary Колбэк оплаты
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID сессии"
// @Param request body Request true "Идентификатор платежа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Оплата не открывалась"
// @Failure 422 {object} response.ErrorResponse
// @Router /checkout/{id}/callback [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.callback"

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

	conf, err := h.service.OnPaymentCallback(r.Context(), userID, chi.URLParam(r, "id"), req.PaymentReference)
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}
	log.Info("payment confirmed",
		slog.String("session_id", conf.SessionID), slog.String("state", string(conf.State)))
	render.JSON(w, r, response.OKWithData(conf))
}
