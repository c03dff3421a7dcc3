// Package instance собирает состояние одного клиента консоли и управляет их набором.
package instance

import (
	"context"
	"sync/atomic"
	"time"

	"adminconsole/internal/console/app/notifications"
	"adminconsole/internal/console/app/services"
	"adminconsole/internal/console/app/session"
	"adminconsole/internal/console/app/sidebar"
	"adminconsole/internal/console/config"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/internal/console/ports/storage"
)

// Settings - параметры клиентского состояния.
type Settings struct {
	NotificationTTL     time.Duration
	SidebarDefaultOpen  bool
	LoginPath           string
	ValidateOnStart     bool
	SingleFlightRefresh bool
}

// SettingsFromConfig переносит параметры из конфигурации интерфейса.
func SettingsFromConfig(cfg *config.UIConfig) Settings {
	return Settings{
		NotificationTTL:     cfg.NotificationTTL,
		SidebarDefaultOpen:  cfg.SidebarDefaultOpen,
		LoginPath:           cfg.LoginPath,
		ValidateOnStart:     cfg.ValidateOnStart,
		SingleFlightRefresh: cfg.SingleFlight,
	}
}

// Instance - состояние одного клиента: сессия, уведомления, боковая панель.
type Instance struct {
	ID            string
	Session       *session.Store
	Notifications *notifications.Queue
	Sidebar       *sidebar.Store
	Service       *services.SessionService
	Redirects     *Redirects

	lastSeen atomic.Int64
}

// New собирает экземпляр и восстанавливает его сохраненное состояние.
func New(ctx context.Context, id string, st storage.Storage, gateway apiPorts.Gateway, settings Settings) *Instance {
	redirects := &Redirects{}
	store := session.New(st,
		session.WithNavigator(redirects),
		session.WithEntryPoint(settings.LoginPath))
	queue := notifications.NewQueue(settings.NotificationTTL)

	opts := []services.Option{services.WithNotifications(queue)}
	if settings.SingleFlightRefresh {
		opts = append(opts, services.WithSingleFlightRefresh())
	}

	inst := &Instance{
		ID:            id,
		Session:       store,
		Notifications: queue,
		Sidebar:       sidebar.New(st, settings.SidebarDefaultOpen),
		Service:       services.NewSessionService(gateway, store, opts...),
		Redirects:     redirects,
	}

	inst.Service.Start(ctx, settings.ValidateOnStart)
	inst.Sidebar.Restore(ctx)
	inst.Touch(time.Now())

	return inst
}

// Touch отмечает обращение к экземпляру.
func (i *Instance) Touch(now time.Time) {
	i.lastSeen.Store(now.UnixNano())
}

// LastSeen возвращает время последнего обращения.
func (i *Instance) LastSeen() time.Time {
	return time.Unix(0, i.lastSeen.Load())
}

// Close освобождает таймеры экземпляра. Сохраненное состояние не удаляется.
func (i *Instance) Close() {
	i.Notifications.Close()
}
