package failures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Normalize приводит произвольное значение сбоя к error.
// Отмена контекста и сетевые ошибки без классификации оборачиваются в TransportError.
func Normalize(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case error:
		if classified(val) {
			return val
		}
		var netErr net.Error
		if errors.Is(val, context.Canceled) || errors.Is(val, context.DeadlineExceeded) || errors.As(val, &netErr) {
			return &TransportError{Op: "call", Err: val}
		}
		return val
	case string:
		return errors.New(val)
	default:
		return errors.New(fmt.Sprint(val))
	}
}

func classified(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRemote)
}

// MessageFromBody извлекает человекочитаемое сообщение из тела ответа.
// Поддерживаются формы {message}, {error: "..."}, {error: {message}} и {error: {json: {message}}}.
func MessageFromBody(body []byte, fallback string) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	if len(payload.Error) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
		return fallback
	}

	var nested struct {
		Message string `json:"message"`
		JSON    struct {
			Message string `json:"message"`
		} `json:"json"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(nested.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(nested.JSON.Message); msg != "" {
		return msg
	}
	return fallback
}
