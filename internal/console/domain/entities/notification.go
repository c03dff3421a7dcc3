package entities

import (
	"errors"
	"fmt"
)

// NotificationKind - тип уведомления.
type NotificationKind string

// Допустимые типы уведомлений.
const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// ErrUnknownNotificationKind возвращается для неизвестного типа уведомления.
var ErrUnknownNotificationKind = errors.New("unknown notification kind")

// ParseNotificationKind проверяет строковое значение типа.
func ParseNotificationKind(s string) (NotificationKind, error) {
	switch kind := NotificationKind(s); kind {
	case NotificationSuccess, NotificationError, NotificationInfo:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNotificationKind, s)
	}
}

// Notification - временное уведомление интерфейса.
type Notification struct {
	ID      string           `json:"id"`
	Kind    NotificationKind `json:"type"`
	Message string           `json:"message"`
}
