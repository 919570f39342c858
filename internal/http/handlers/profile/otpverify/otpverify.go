// Package otpverify проверяет одноразовый код.
package otpverify

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
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/http/response"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/validate"
	"github.com/magabrotheeeer/hr-storefront/internal/services/profile"
)

type Request struct {
	Type  string `json:"type" validate:"required,oneof=email mobile"`
	Value string `json:"value" validate:"required,max=254"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type Service interface {
	VerifyOTP(ctx context.Context, userID int64, otpType, value, otp string) error
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
// @Summary Проверить код подтверждения
// @Tags Profile
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Код"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверный код"
// @Failure 422 {object} response.ErrorResponse
// @Router /profile/otp/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.otpverify"

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

	err := h.service.VerifyOTP(r.Context(), userID, req.Type, req.Value, req.OTP)
	if err != nil {
		var be *backend.Error
		switch {
		case errors.Is(err, profile.ErrInvalidOTP), errors.Is(err, profile.ErrInvalidOTPType):
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.As(err, &be):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid or expired code"))
		default:
			log.Error("failed to verify otp", sl.Err(err))
			status, msg := response.FromBackend(err)
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
		}
		return
	}

	render.JSON(w, r, response.OK())
}
