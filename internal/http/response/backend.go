package response

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/gateway"
)

// BackendUnavailable сообщение, когда backend не ответил или ответил ошибкой сервера.
const BackendUnavailable = "backend is unavailable, please try again later"

// FromBackend переводит ошибку backend в HTTP-статус и сообщение для пользователя.
// Отказы backend по существу запроса отдаются как 400 с его сообщением.
func FromBackend(err error) (int, string) {
	var be *backend.Error
	if errors.As(err, &be) {
		msg := be.Message
		if msg == "" {
			msg = "request rejected by backend"
		}
		return http.StatusBadRequest, msg
	}

	var se *gateway.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusUnauthorized {
		msg := se.Message()
		if msg == "" {
			msg = "request rejected by backend"
		}
		return http.StatusBadRequest, msg
	}
	return http.StatusBadGateway, BackendUnavailable
}
