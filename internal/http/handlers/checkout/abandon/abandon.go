// Package abandon закрывает неоплаченную сессию, когда пользователь уходит со страницы оплаты.
package abandon

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
	Abandon(ctx context.Context, userID int64, id string) (*checkout.View, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отказ от оформления
// @Description Поздний колбэк оплаты для закрытой сессии всё равно будет принят.
// @Tags Checkout
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID сессии"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Оплата уже получена"
// @Router /checkout/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.abandon"

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

	view, err := h.service.Abandon(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(view))
}
