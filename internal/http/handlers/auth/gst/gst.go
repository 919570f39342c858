// Package gst реализует проверку GSTIN перед регистрацией.
package gst

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/validate"
	"github.com/magabrotheeeer/hr-storefront/internal/services/account"
)

type Request struct {
	GSTNumber string `json:"gst_number" validate:"required,gstin"`
}

type Service interface {
	VerifyGST(ctx context.Context, gstin string) (*backend.CompanyDetails, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.New(),
	}
}

// ServeHTTP godoc
// @Summary Проверка GSTIN
// @Description Ищет компанию по GSTIN и возвращает её реквизиты для автозаполнения формы регистрации.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "GSTIN"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Компания не найдена"
// @Failure 422 {object} response.ErrorResponse "Неверный формат GSTIN"
// @Failure 502 {object} response.ErrorResponse "Backend недоступен"
// @Router /gst/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.gst"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	details, err := h.service.VerifyGST(r.Context(), req.GSTNumber)
	switch {
	case errors.Is(err, account.ErrInvalidGST):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid GST number format"))
		return
	case errors.Is(err, backend.ErrCompanyNotFound):
		log.Info("company not found", slog.String("gstin", req.GSTNumber))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("company not found for this GST number"))
		return
	case err != nil:
		log.Error("gst verification failed", sl.Err(err))
		status, msg := response.FromBackend(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(details))
}
