// Package gateway реализует единый шлюз запросов к backend с автоматическим
// получением токена и однократным повтором запроса после ответа 401.
//
// Каждый исходящий запрос проходит состояния
// NoCredential → Acquiring → Attached → Sent → {Succeeded | Rejected}.
// Ответ 401 на первой попытке очищает токен, получает новый и повторяет запрос
// ровно один раз; отказ на повторной попытке возвращается вызывающему как есть.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/metrics"
)

const maxResponseBody = 32 << 20

// attempt номер попытки логического запроса. Передаётся по значению через вызовы,
// поэтому параллельные запросы не делят состояние повтора.
type attempt int

const (
	firstAttempt attempt = 1
	retryAttempt attempt = 2
)

// Config параметры подключения к backend.
type Config struct {
	BaseURL    string
	TokenPath  string
	Identity   string
	AuthScheme string
	Timeout    time.Duration
}

// Request описывает логический запрос к backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response успешный ответ backend.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON декодирует тело ответа в v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("gateway.DecodeJSON: %w", err)
	}
	return nil
}

// Gateway шлюз запросов к backend. Безопасен для параллельного использования.
type Gateway struct {
	baseURL    string
	tokenPath  string
	identity   string
	authScheme string
	httpClient *http.Client
	store      CredentialStore
	log        *slog.Logger
}

// Option настраивает Gateway.
type Option func(*Gateway)

// WithHTTPClient подменяет HTTP-клиент (используется в тестах).
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// New создаёт шлюз поверх хранилища токена.
func New(cfg Config, store CredentialStore, log *slog.Logger, opts ...Option) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenPath:  cfg.TokenPath,
		identity:   cfg.Identity,
		authScheme: cfg.AuthScheme,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		log:        log.With(slog.String("component", "gateway")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do выполняет запрос с подстановкой токена и однократным повтором после 401.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	const op = "gateway.Do"

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, ok := g.storedCredential(ctx)
	if !ok {
		token, _ = g.AcquireCredential(ctx)
	}

	return g.roundTrip(ctx, req, body, token, firstAttempt)
}

func (g *Gateway) roundTrip(ctx context.Context, req Request, body []byte, token string, a attempt) (*Response, error) {
	const op = "gateway.roundTrip"

	resp, err := g.send(ctx, req, body, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && a == firstAttempt {
		g.log.Warn("backend rejected credential, retrying with a fresh one",
			slog.String("method", req.Method), slog.String("path", req.Path))

		if err := g.store.Clear(ctx); err != nil {
			g.log.Error("failed to clear credential", sl.Err(err))
		}
		if fresh, ok := g.AcquireCredential(ctx); ok {
			metrics.UnauthorizedRetries.Inc()
			return g.roundTrip(ctx, req, body, fresh, retryAttempt)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{
			Method: req.Method,
			Path:   req.Path,
			Code:   resp.StatusCode,
			Body:   resp.Body,
		}
	}
	return resp, nil
}

func (g *Gateway) send(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	target := g.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if usable(token) {
		httpReq.Header.Set("Authorization", g.authorization(token))
	}

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(req.Method, metrics.StatusClass(0)).Inc()
		return nil, err
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		metrics.BackendRequests.WithLabelValues(req.Method, metrics.StatusClass(0)).Inc()
		return nil, err
	}
	metrics.BackendRequests.WithLabelValues(req.Method, metrics.StatusClass(httpResp.StatusCode)).Inc()

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// AcquireCredential получает новый токен у фиксированного эндпоинта без авторизации,
// сохраняет и возвращает его. Ошибка не фатальна: логируется, возвращается ("", false).
//
// Одновременные вызовы не объединяются: каждый обращается к backend и перезаписывает ключ.
func (g *Gateway) AcquireCredential(ctx context.Context) (string, bool) {
	const op = "gateway.AcquireCredential"
	log := g.log.With(sl.Op(op))

	token, err := g.fetchCredential(ctx)
	if err != nil {
		metrics.CredentialAcquisitions.WithLabelValues("failed").Inc()
		log.Error("failed to acquire backend credential", sl.Err(err))
		return "", false
	}
	metrics.CredentialAcquisitions.WithLabelValues("ok").Inc()

	if err := g.store.Set(ctx, token); err != nil {
		log.Error("failed to persist backend credential", sl.Err(err))
	}
	log.Info("backend credential acquired")
	return token, true
}

func (g *Gateway) fetchCredential(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{"user_name": g.identity})
	if err != nil {
		return "", err
	}
	target := g.baseURL + "/" + strings.TrimLeft(g.tokenPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if !usable(out.Token) {
		return "", errors.New("token missing from response")
	}
	return out.Token, nil
}

// ForgetCredential удаляет сохранённый токен (явный выход).
func (g *Gateway) ForgetCredential(ctx context.Context) error {
	const op = "gateway.ForgetCredential"
	if err := g.store.Clear(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Gateway) storedCredential(ctx context.Context) (string, bool) {
	token, ok, err := g.store.Get(ctx)
	if err != nil {
		g.log.Error("failed to read credential", sl.Err(err))
		return "", false
	}
	if !ok || !usable(token) {
		return "", false
	}
	return token, true
}

func (g *Gateway) authorization(token string) string {
	if g.authScheme == "" {
		return token
	}
	return g.authScheme + " " + token
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		return data, nil
	}
}
