// Package metrics содержит метрики Prometheus витрины.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests число запросов к backend по методу и итоговому статусу.
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Backend requests by method and final status class.",
	}, []string{"method", "status"})

	// CredentialAcquisitions число обращений к эндпоинту выдачи токена.
	CredentialAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "gateway",
		Name:      "credential_acquisitions_total",
		Help:      "Credential acquisitions by result (ok|failed).",
	}, []string{"result"})

	// UnauthorizedRetries число повторов после 401.
	UnauthorizedRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "gateway",
		Name:      "unauthorized_retries_total",
		Help:      "Requests resent once after a 401 with a fresh credential.",
	})

	// CheckoutPayments число колбэков оплаты по исходу синхронизации.
	CheckoutPayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "payments_total",
		Help:      "Payment callbacks by sync outcome (synced|sync_failed).",
	}, []string{"outcome"})

	// InvoiceDownloads число запросов счетов по исходу.
	InvoiceDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "invoice_downloads_total",
		Help:      "Invoice download attempts by outcome (ok|missing_id|failed).",
	}, []string{"outcome"})
)

// StatusClass сворачивает HTTP-код в метку вида "2xx". Ноль означает сетевую ошибку.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
