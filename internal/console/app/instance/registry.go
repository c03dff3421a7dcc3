package instance

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/internal/console/ports/storage"
	"adminconsole/pkg/logger"
	"adminconsole/pkg/metrics"
)

// Константы для логирования.
const (
	LogInstanceCreated = "console instance created"
	LogInstanceEvicted = "console instance evicted"
	LogSweeperStopped  = "instance sweeper stopped"
)

// ErrRegistryClosed возвращается Get после Close.
var ErrRegistryClosed = errors.New("instance registry closed")

// Registry хранит экземпляры клиентов по идентификатору сессии консоли.
type Registry struct {
	storage     storage.Namespacer
	gateway     apiPorts.Gateway
	settings    Settings
	idleTimeout time.Duration

	creating singleflight.Group

	mu        sync.Mutex
	instances map[string]*Instance
	closed    bool
}

// NewRegistry создает пустой реестр.
func NewRegistry(st storage.Namespacer, gateway apiPorts.Gateway, settings Settings, idleTimeout time.Duration) *Registry {
	return &Registry{
		storage:     st,
		gateway:     gateway,
		settings:    settings,
		idleTimeout: idleTimeout,
		instances:   make(map[string]*Instance),
	}
}

// Get возвращает экземпляр по id, создавая и восстанавливая его при первом обращении.
// Создание одного id не блокирует обращения к другим: восстановление идет вне
// общей блокировки, параллельные запросы одного id ждут одно создание.
func (r *Registry) Get(ctx context.Context, id string) (*Instance, error) {
	if inst, err := r.lookup(id); inst != nil || err != nil {
		return inst, err
	}

	v, err, _ := r.creating.Do(id, func() (any, error) {
		if inst, err := r.lookup(id); inst != nil || err != nil {
			return inst, err
		}

		inst := New(ctx, id, r.storage.Namespace(id+":"), r.gateway, r.settings)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			inst.Close()
			return nil, ErrRegistryClosed
		}
		r.instances[id] = inst
		metrics.Instances.Set(float64(len(r.instances)))
		r.mu.Unlock()

		logger.Log(ctx).Debug(ctx, LogInstanceCreated, zap.String("instance_id", id))
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Instance), nil
}

func (r *Registry) lookup(id string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if inst, ok := r.instances[id]; ok {
		inst.Touch(time.Now())
		return inst, nil
	}
	return nil, nil
}

// Touch продлевает жизнь экземпляра, если он есть.
func (r *Registry) Touch(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.Touch(now)
	}
}

// Len возвращает число живых экземпляров.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Sweep вытесняет экземпляры, простаивающие дольше idleTimeout. Возвращает число вытесненных.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	var evicted []*Instance
	for id, inst := range r.instances {
		if now.Sub(inst.LastSeen()) > r.idleTimeout {
			evicted = append(evicted, inst)
			delete(r.instances, id)
		}
	}
	metrics.Instances.Set(float64(len(r.instances)))
	r.mu.Unlock()

	for _, inst := range evicted {
		inst.Close()
		logger.Log(ctx).Debug(ctx, LogInstanceEvicted, zap.String("instance_id", inst.ID))
	}
	return len(evicted)
}

// Run периодически вызывает Sweep до отмены ctx.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log(ctx).Debug(ctx, LogSweeperStopped)
			return
		case now := <-ticker.C:
			r.Sweep(ctx, now)
		}
	}
}

// Close закрывает все экземпляры.
func (r *Registry) Close(_ context.Context) error {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]*Instance)
	r.closed = true
	r.mu.Unlock()

	for _, inst := range instances {
		inst.Close()
	}
	metrics.Instances.Set(0)
	return nil
}
