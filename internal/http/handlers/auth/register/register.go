// Package register реализует HTTP-обработчик регистрации компании.
//
// Регистрация возможна только для GSTIN, предварительно подтверждённого через /gst/verify.
package register

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

// Request входные данные для регистрации.
type Request struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	CompanyName     string `json:"company_name" validate:"required,max=200"`
	CompanyAddress  string `json:"company_address"`
	GSTNumber       string `json:"gst_number" validate:"required,gstin"`
	Mobile          string `json:"mobile" validate:"required,numeric,len=10"`
	Email           string `json:"email" validate:"required,email"`
	Designation     string `json:"designation"`
	Street          string `json:"street" validate:"required"`
	Street2         string `json:"street2"`
	Pincode         string `json:"pincode" validate:"required,numeric,len=6"`
	StateID         int64  `json:"state_id" validate:"required"`
	CountryID       int64  `json:"country_id" validate:"required"`
	City            string `json:"city" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type Service interface {
	Register(ctx context.Context, reg backend.Registration) error
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
// @Summary Регистрация компании
// @Description Регистрирует компанию в backend. GSTIN должен быть подтверждён заранее.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные компании и пользователя"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или отказ backend"
// @Failure 409 {object} response.ErrorResponse "GSTIN не подтверждён"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Backend недоступен"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.Register(r.Context(), backend.Registration{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CompanyAddress: req.CompanyAddress,
		CompanyName:    req.CompanyName,
		GSTNumber:      req.GSTNumber,
		Mobile:         req.Mobile,
		Email:          req.Email,
		Designation:    req.Designation,
		Street:         req.Street,
		Street2:        req.Street2,
		Pincode:        req.Pincode,
		StateID:        req.StateID,
		CountryID:      req.CountryID,
		City:           req.City,
		Password:       req.Password,
	})
	if errors.Is(err, account.ErrGSTNotVerified) {
		log.Info("registration with unverified gst number")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("please verify your GST number first"))
		return
	}
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		status, msg := response.FromBackend(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"email":   req.Email,
		"message": "registration successful",
	}))
}
