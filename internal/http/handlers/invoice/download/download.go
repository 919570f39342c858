// Package download отдаёт PDF счёта из истории подписок.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/services/profile"
)

type Service interface {
	InvoicePDF(ctx context.Context, userID int64, invoiceID string) ([]byte, error)
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
// @Tags Subscriptions
// @Produce  application/pdf
// @Security BearerAuth
// @Param id path string true "ID счёта"
// @Success 200 {file} binary
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /invoices/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoice.download"

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

	id := chi.URLParam(r, "id")
	body, err := h.service.InvoicePDF(r.Context(), userID, id)
	switch {
	case errors.Is(err, profile.ErrMissingInvoiceID):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(profile.ErrMissingInvoiceID.Error()))
		return
	case errors.Is(err, profile.ErrInvoiceNotFound):
		log.Warn("invoice not found for user", slog.String("invoice_id", id), slog.Int64("user_id", userID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(profile.ErrInvoiceNotFound.Error()))
		return
	case err != nil:
		log.Error("failed to download invoice", slog.String("invoice_id", id), sl.Err(err))
		status, msg := response.FromBackend(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	response.PDF(w, fmt.Sprintf("Invoice_%s.pdf", id), body)
}
