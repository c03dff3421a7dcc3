package logger

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxRequestIDLength ограничивает длину принятого извне идентификатора.
const MaxRequestIDLength = 64

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// NewRequestIDContext кладет идентификатор запроса в ctx, пустой заменяется новым uuid.
func NewRequestIDContext(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID извлекает идентификатор запроса. Пустое значение считается отсутствующим.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// GenerateRequestID генерирует новый идентификатор запроса.
func GenerateRequestID() string {
	return uuid.NewString()
}

// AcceptRequestID возвращает входящий идентификатор, если его можно писать в логи
// и отдавать обратно в заголовке, иначе новый.
func AcceptRequestID(incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || len(incoming) > MaxRequestIDLength {
		return GenerateRequestID()
	}
	for _, r := range incoming {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return GenerateRequestID()
		}
	}
	return incoming
}

// DetachContext возвращает фоновый контекст с идентификатором запроса и логгером из src.
// Отмена и дедлайн src не переносятся.
func DetachContext(src context.Context) context.Context {
	ctx := context.Background()
	if id, ok := GetRequestID(src); ok {
		ctx = context.WithValue(ctx, requestIDKey, id)
	}
	if l, err := FromContext(src); err == nil {
		ctx = NewContext(ctx, l)
	}
	return ctx
}

// WithRequestID возвращает логгер с полем request_id; без id в ctx возвращает l.
func (l *Logger) WithRequestID(ctx context.Context) *Logger {
	if id, ok := GetRequestID(ctx); ok {
		return l.With(zap.String(RequestID, id))
	}
	return l
}
