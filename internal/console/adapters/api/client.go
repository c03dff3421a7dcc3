// Package api предоставляет реализацию клиента удаленного API администратора.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"adminconsole/internal/console/config"
	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/internal/console/resilience"
	"adminconsole/pkg/metrics"
)

// Пути эндпоинтов аутентификации.
const (
	PathLogin   = "/admin/auth/login"
	PathLogout  = "/admin/auth/logout"
	PathRefresh = "/admin/auth/refresh"
	PathMe      = "/admin/auth/me"
)

// Константы для логирования.
const (
	LogMethodLogin           = "Login"
	LogMethodLogout          = "Logout"
	LogMethodRefresh         = "Refresh"
	LogMethodValidateSession = "ValidateSession"
	LogMethodBatch           = "Batch"

	LogLogoutIgnored      = "remote logout failed, ignoring"
	LogSessionInvalid     = "session validation failed"
	LogNoTokenSkipRequest = "no access token, request skipped"

	ErrorFailedToLogin   = "failed to login"
	ErrorFailedToRefresh = "failed to refresh access token"
	ErrorFailedToEncode  = "failed to encode request"
	ErrorFailedToDecode  = "failed to decode response"
	ErrorCallFailed      = "api call failed"
)

// ErrNilConfig возвращается при создании клиента без конфигурации.
var ErrNilConfig = errors.New("api config is nil")

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задает HTTP-клиент транспорта.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTransformer задает кодировщик полезной нагрузки процедур.
func WithTransformer(t Transformer) Option {
	return func(c *Client) {
		if t != nil {
			c.transformer = t
		}
	}
}

// WithCircuitBreaker задает Circuit Breaker. nil отключает его.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// Client реализует интерфейс Gateway поверх HTTP.
// Клиент не хранит состояние сессии: токен читается из TokenSource на каждый вызов.
type Client struct {
	cfg         *config.APIConfig
	http        *http.Client
	transformer Transformer
	breaker     *resilience.CircuitBreaker
}

var _ apiPorts.Gateway = (*Client)(nil)

// New создает новый экземпляр клиента API.
func New(cfg *config.APIConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.RequestTimeout},
		transformer: SuperJSON{},
	}
	if cfg.BreakerThreshold > 0 {
		c.breaker = resilience.NewCircuitBreaker("admin-api", resilience.CircuitBreakerConfig{
			ErrorThreshold:   cfg.BreakerThreshold,
			Timeout:          cfg.BreakerTimeout,
			SuccessThreshold: 1,
			IsFailure:        resilience.IsRemoteFailure,
		})
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// response - прочитанный ответ сервера.
type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= http.StatusOK && r.status < http.StatusMultipleChoices
}

// newRequest собирает запрос с JSON-телом и заголовком авторизации.
// Заголовок Authorization ставится только при непустом токене.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, payload any, token string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setBearer(req, token)

	return req, nil
}

func setBearer(req *http.Request, token string) {
	if token == "" {
		return
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
}

// send выполняет запрос через Circuit Breaker. Ответы с любым статусом
// возвращаются вызывающему, ошибкой считается только сбой транспорта.
func (c *Client) send(ctx context.Context, op string, req *http.Request) (*response, error) {
	var res *response

	run := func() error {
		httpResp, err := c.http.Do(req)
		if err != nil {
			return &failures.TransportError{Op: op, Err: err}
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return &failures.TransportError{Op: op, Err: err}
		}

		res = &response{status: httpResp.StatusCode, body: body}
		if res.status >= http.StatusInternalServerError {
			return &failures.RemoteError{Status: res.status, Message: http.StatusText(res.status)}
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, run)
	} else {
		err = run()
	}

	outcome := metrics.Outcome(err)
	if res != nil && !res.ok() {
		outcome = metrics.OutcomeFailure
	}
	metrics.APIRequests.WithLabelValues(op, outcome).Inc()

	if res != nil {
		return res, nil
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, &failures.TransportError{Op: op, Err: err}
	}
	return nil, err
}

// token читает токен из источника, nil-источник означает анонимный вызов.
func bearerToken(ctx context.Context, tokens apiPorts.TokenSource) string {
	if tokens == nil {
		return ""
	}
	t, ok := tokens.ReadToken(ctx)
	if !ok {
		return ""
	}
	return t
}
