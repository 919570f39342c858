// Package payment выдаёт параметры платёжного виджета для сессии оформления.
package payment

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/failure"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
)

type Service interface {
	BeginPayment(ctx context.Context, userID int64, id string) (*checkout.WidgetOptions, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Открыть оплату
// @Description Параметры виджета оплаты; amount содержит итог в минимальных единицах валюты.
// @Tags Checkout
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID сессии"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /checkout/{id}/payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.payment"

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

	opts, err := h.service.BeginPayment(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(opts))
}
