// Package storefront собирает HTTP-приложение витрины.
package storefront

import (
	"log/slog"
	"net/netip"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/forgot"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/gst"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/auth/reset"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/catalog/plans"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/abandon"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/callback"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/configure"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/invoice"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/payment"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/read"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/receipt"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/checkout/start"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/invoice/download"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/lead/create"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/profile/contacts"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/profile/contactupdate"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/profile/otpsend"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/profile/otpverify"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/profile/update"
	"github.com/magabrotheeeer/hr-storefront/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/hr-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hr-storefront/internal/services/account"
	"github.com/magabrotheeeer/hr-storefront/internal/services/catalog"
	"github.com/magabrotheeeer/hr-storefront/internal/services/checkout"
	"github.com/magabrotheeeer/hr-storefront/internal/services/lead"
	"github.com/magabrotheeeer/hr-storefront/internal/services/profile"
)

// Services сервисы, которые обслуживают маршруты.
type Services struct {
	Account  *account.Service
	Catalog  *catalog.Service
	Checkout *checkout.Service
	Profile  *profile.Service
	Lead     *lead.Service
}

// Частота для эндпоинтов, которые дёргают платные или чувствительные операции backend.
const (
	sensitiveRPS   = 1
	sensitiveBurst = 5
)

// RegisterRoutes регистрирует все маршруты приложения.
// Заголовки X-Real-IP/X-Forwarded-For учитываются только от proxies.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, proxies []netip.Prefix) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middlewarectx.TrustedRealIP(proxies),
		middleware.Logger,
		middleware.Recoverer,
	)

	limited := middlewarectx.RateLimitMiddleware(middlewarectx.NewLimiter(sensitiveRPS, sensitiveBurst), logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.With(limited).Post("/login", login.New(logger, svc.Account).ServeHTTP)
		r.Post("/register", register.New(logger, svc.Account).ServeHTTP)
		r.With(limited).Post("/gst/verify", gst.New(logger, svc.Account).ServeHTTP)
		r.With(limited).Post("/password/forgot", forgot.New(logger, svc.Account).ServeHTTP)
		r.Post("/password/reset", reset.New(logger, svc.Account).ServeHTTP)
		r.Get("/plans", plans.New(logger, svc.Catalog).ServeHTTP)
		r.Post("/leads", create.New(logger, svc.Lead).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Account, logger))

			r.Post("/logout", logout.New(logger, svc.Account).ServeHTTP)

			r.Post("/checkout", start.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/checkout/{id}", read.New(logger, svc.Checkout).ServeHTTP)
			r.Put("/checkout/{id}", configure.New(logger, svc.Checkout).ServeHTTP)
			r.Delete("/checkout/{id}", abandon.New(logger, svc.Checkout).ServeHTTP)
			r.Post("/checkout/{id}/payment", payment.New(logger, svc.Checkout).ServeHTTP)
			r.Post("/checkout/{id}/callback", callback.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/checkout/{id}/invoice", invoice.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/checkout/{id}/receipt", receipt.New(logger, svc.Checkout).ServeHTTP)

			r.Get("/profile/contacts", contacts.New(logger, svc.Profile).ServeHTTP)
			r.Put("/profile/contacts/{id}", contactupdate.New(logger, svc.Profile).ServeHTTP)
			r.Put("/profile", update.New(logger, svc.Profile).ServeHTTP)
			r.With(limited).Post("/profile/otp/send", otpsend.New(logger, svc.Profile).ServeHTTP)
			r.Post("/profile/otp/verify", otpverify.New(logger, svc.Profile).ServeHTTP)

			r.Get("/subscriptions", list.New(logger, svc.Profile).ServeHTTP)
			r.Get("/invoices/{id}", download.New(logger, svc.Profile).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
