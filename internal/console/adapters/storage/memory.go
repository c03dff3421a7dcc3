// Package storage содержит реализации хранилища клиентского состояния.
package storage

import (
	"context"
	"sync"

	"adminconsole/internal/console/ports/storage"
)

// MemoryStorage хранит значения в памяти процесса.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage создает пустое хранилище в памяти.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get возвращает значение по ключу.
func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set сохраняет значение.
func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete удаляет значение.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len возвращает число сохраненных ключей.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Namespace возвращает представление с префиксом ключей.
func (m *MemoryStorage) Namespace(prefix string) storage.Storage {
	return Prefixed(m, prefix)
}
