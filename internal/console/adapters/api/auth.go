package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"adminconsole/internal/console/domain/entities"
	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/pkg/logger"
)

// MessageCredentialsRequired - ошибка входа без email или пароля.
const MessageCredentialsRequired = "Email and password are required"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login выполняет вход администратора. Хранилище сессии не изменяется:
// связать результат с сессией должен вызывающий.
func (c *Client) Login(ctx context.Context, email, password string) (*entities.LoginResult, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodLogin))

	if email == "" || password == "" {
		return nil, &failures.AuthenticationError{Message: MessageCredentialsRequired}
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.Endpoint(PathLogin),
		loginRequest{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, LogMethodLogin, req)
	if err != nil {
		log.Error(ctx, ErrorFailedToLogin, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrorFailedToLogin, err)
	}

	if !resp.ok() {
		return nil, &failures.AuthenticationError{
			Message: failures.MessageFromBody(resp.body, failures.DefaultLoginMessage),
		}
	}

	var result entities.LoginResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		log.Error(ctx, ErrorFailedToDecode, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrorFailedToDecode, err)
	}
	if result.AccessToken == "" {
		return nil, &failures.AuthenticationError{Message: failures.DefaultLoginMessage}
	}

	return &result, nil
}

// Logout уведомляет сервер о выходе в фоне. Любой сбой проглатывается.
// Канал закрывается по завершении, ждать его не обязательно.
func (c *Client) Logout(ctx context.Context, tokens apiPorts.TokenSource) <-chan struct{} {
	done := make(chan struct{})

	t := bearerToken(ctx, tokens)
	if t == "" {
		close(done)
		return done
	}

	ctx = logger.DetachContext(ctx)
	go func() {
		defer close(done)
		log := logger.Log(ctx).With(zap.String("method", LogMethodLogout))

		req, err := c.newRequest(ctx, http.MethodPost, c.cfg.Endpoint(PathLogout), nil, t)
		if err != nil {
			log.Debug(ctx, LogLogoutIgnored, zap.Error(err))
			return
		}
		resp, err := c.send(ctx, LogMethodLogout, req)
		if err != nil {
			log.Debug(ctx, LogLogoutIgnored, zap.Error(err))
			return
		}
		if !resp.ok() {
			log.Debug(ctx, LogLogoutIgnored, zap.Int("status", resp.status))
		}
	}()

	return done
}

// Refresh обменивает refresh-токен на новый токен доступа.
// Это единственный запрос, в котором передается refresh-токен.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRefresh))

	if refreshToken == "" {
		return "", &failures.SessionExpiredError{Message: failures.DefaultRefreshMessage}
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.Endpoint(PathRefresh),
		refreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, LogMethodRefresh, req)
	if err != nil {
		log.Warn(ctx, ErrorFailedToRefresh, zap.Error(err))
		return "", err
	}

	if !resp.ok() {
		log.Info(ctx, ErrorFailedToRefresh, zap.Int("status", resp.status))
		return "", &failures.SessionExpiredError{
			Message: failures.MessageFromBody(resp.body, failures.DefaultRefreshMessage),
		}
	}

	var decoded refreshResponse
	if err := json.Unmarshal(resp.body, &decoded); err != nil || decoded.AccessToken == "" {
		log.Warn(ctx, ErrorFailedToDecode, zap.Error(err))
		return "", &failures.SessionExpiredError{Message: failures.DefaultRefreshMessage}
	}

	return decoded.AccessToken, nil
}

// ValidateSession проверяет токен на сервере. Без токена запрос не выполняется.
// Любой сбой означает невалидную сессию.
func (c *Client) ValidateSession(ctx context.Context, tokens apiPorts.TokenSource) bool {
	log := logger.Log(ctx).With(zap.String("method", LogMethodValidateSession))

	t := bearerToken(ctx, tokens)
	if t == "" {
		log.Debug(ctx, LogNoTokenSkipRequest)
		return false
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.Endpoint(PathMe), nil, t)
	if err != nil {
		log.Debug(ctx, LogSessionInvalid, zap.Error(err))
		return false
	}

	resp, err := c.send(ctx, LogMethodValidateSession, req)
	if err != nil {
		log.Debug(ctx, LogSessionInvalid, zap.Error(err))
		return false
	}
	if !resp.ok() {
		log.Debug(ctx, LogSessionInvalid, zap.Int("status", resp.status))
		return false
	}
	return true
}
