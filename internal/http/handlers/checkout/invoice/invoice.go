// Package invoice отдаёт счёт оплаченной сессии в PDF.
package invoice

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
	DownloadInvoice(ctx context.Context, userID int64, id string) (*checkout.Document, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Скачать счёт
// @Tags Checkout
// @Produce  application/pdf
// @Security BearerAuth
// @Param id path string true "ID сессии"
// @Success 200 {file} file "Invoice_<id>.pdf"
// @Failure 404 {object} response.ErrorResponse "Номер счёта не получен"
// @Failure 502 {object} response.ErrorResponse "Не удалось скачать счёт"
// @Router /checkout/{id}/invoice [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.invoice"

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

	doc, err := h.service.DownloadInvoice(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		failure.Render(w, r, log, err)
		return
	}
	response.PDF(w, doc.Name, doc.Body)
}
