// Package reset устанавливает новый пароль по временному.
package reset

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
	Email           string `json:"email" validate:"required,email"`
	TempPassword    string `json:"temp_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type Service interface {
	ConfirmPasswordReset(ctx context.Context, reset backend.PasswordReset) error
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
// @Summary Установка нового пароля
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Временный и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Пароли не совпадают или отказ backend"
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /password/reset [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.reset"

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

	err := h.service.ConfirmPasswordReset(r.Context(), backend.PasswordReset{
		Email:           req.Email,
		TempPassword:    req.TempPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if errors.Is(err, account.ErrPasswordMismatch) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("passwords do not match"))
		return
	}
	if err != nil {
		log.Error("password reset failed", sl.Err(err))
		status, msg := response.FromBackend(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]string{
		"message": "password updated",
	}))
}
