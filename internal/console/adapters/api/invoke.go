package api

import (
	"context"

	"go.uber.org/zap"

	"adminconsole/internal/console/domain/failures"
	"adminconsole/pkg/logger"
)

// Invoke выполняет fn и сводит любой сбой, включая панику, к одному обработчику.
// Без onError ошибка логируется и подавляется. При сбое возвращается нулевое
// значение и false.
func Invoke[T any](ctx context.Context, fn func(ctx context.Context) (T, error), onError func(error)) (result T, ok bool) {
	var zero T

	defer func() {
		if r := recover(); r != nil {
			report(ctx, failures.Normalize(r), onError)
			result, ok = zero, false
		}
	}()

	value, err := fn(ctx)
	if err != nil {
		report(ctx, failures.Normalize(err), onError)
		return zero, false
	}
	return value, true
}

func report(ctx context.Context, err error, onError func(error)) {
	if onError != nil {
		onError(err)
		return
	}
	logger.Log(ctx).Error(ctx, ErrorCallFailed, zap.Error(err))
}
