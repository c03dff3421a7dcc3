// Package sidebar хранит сохраняемое состояние боковой панели.
package sidebar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"adminconsole/internal/console/domain/failures"
	"adminconsole/internal/console/ports/storage"
	"adminconsole/pkg/logger"
)

// KeyOpen - ключ сохраняемого флага.
const KeyOpen = "sidebar_open"

// Store - флаг открытой боковой панели.
type Store struct {
	storage     storage.Storage
	defaultOpen bool

	mu   sync.RWMutex
	open bool
}

// New создает хранилище со значением по умолчанию.
func New(st storage.Storage, defaultOpen bool) *Store {
	return &Store{storage: st, defaultOpen: defaultOpen, open: defaultOpen}
}

// Restore загружает сохраненный флаг. Отсутствующее или поврежденное значение дает значение по умолчанию.
func (s *Store) Restore(ctx context.Context) bool {
	open := s.defaultOpen

	raw, ok, err := s.storage.Get(ctx, KeyOpen)
	switch {
	case err != nil:
		logger.Log(ctx).Warn(ctx, "failed to read sidebar state", zap.Error(err))
	case ok:
		var v bool
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			logger.Log(ctx).Debug(ctx, "persisted sidebar state is malformed",
				zap.Error(&failures.ValidationFailure{Key: KeyOpen, Err: err}))
		} else {
			open = v
		}
	}

	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
	return open
}

// Open возвращает текущее значение.
func (s *Store) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Toggle инвертирует флаг и сохраняет его.
func (s *Store) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.open = !s.open
	open := s.open
	s.mu.Unlock()

	encoded, _ := json.Marshal(open)
	if err := s.storage.Set(ctx, KeyOpen, string(encoded)); err != nil {
		return open, fmt.Errorf("persist sidebar state: %w", err)
	}
	return open, nil
}
