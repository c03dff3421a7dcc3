// Package failures определяет таксономию ошибок консоли и их нормализацию.
package failures

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel-ошибки для классификации через errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrSessionExpired = errors.New("session expired")
	ErrTransport      = errors.New("transport failure")
	ErrValidation     = errors.New("invalid persisted state")
	ErrRemote         = errors.New("remote call failed")
)

// Сообщения по умолчанию, если сервер не прислал свое.
const (
	DefaultLoginMessage   = "Login failed"
	DefaultRefreshMessage = "Token refresh failed"
	DefaultRequestMessage = "Request failed"
)

// CodeUnauthorized - код ошибки процедуры для отклоненного токена.
const CodeUnauthorized = "UNAUTHORIZED"

// AuthenticationError - неверные учетные данные при входе.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// SessionExpiredError - обновление токена не удалось, сессия должна быть сброшена.
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string { return e.Message }

func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

// TransportError - сетевая ошибка. Повтор остается на усмотрение вызывающего.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ValidationFailure - поврежденное сохраненное значение.
type ValidationFailure struct {
	Key string
	Err error
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("malformed value under %q: %v", e.Key, e.Err)
}

func (e *ValidationFailure) Unwrap() error { return e.Err }

func (e *ValidationFailure) Is(target error) bool { return target == ErrValidation }

// RemoteError - неуспешный ответ удаленной процедуры.
type RemoteError struct {
	Procedure string
	Status    int
	Code      string
	Message   string
}

func (e *RemoteError) Error() string {
	if e.Procedure == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Procedure, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// IsUnauthorized сообщает, отклонил ли сервер токен доступа.
func IsUnauthorized(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return remote.Status == http.StatusUnauthorized || remote.Code == CodeUnauthorized
}
