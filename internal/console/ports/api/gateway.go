// Package api определяет интерфейсы для взаимодействия с удаленным API администратора.
package api

import (
	"context"

	"adminconsole/internal/console/domain/entities"
)

// TokenSource отдает текущий токен доступа. Хранилище сессии реализует этот интерфейс.
type TokenSource interface {
	ReadToken(ctx context.Context) (string, bool)
}

// TokenSourceFunc адаптирует функцию к TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

// ReadToken вызывает f.
func (f TokenSourceFunc) ReadToken(ctx context.Context) (string, bool) {
	return f(ctx)
}

// Gateway определяет интерфейс клиента удаленного API.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*entities.LoginResult, error)

	Logout(ctx context.Context, tokens TokenSource) <-chan struct{}

	Refresh(ctx context.Context, refreshToken string) (string, error)

	ValidateSession(ctx context.Context, tokens TokenSource) bool

	Call(ctx context.Context, tokens TokenSource, procedure string, input, out any) error

	Mutate(ctx context.Context, tokens TokenSource, procedure string, input, out any) error
}
