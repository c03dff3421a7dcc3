// Package storage определяет интерфейс хранилища сохраняемого клиентского состояния.
package storage

import "context"

// Storage - хранилище строковых значений по ключу.
// Отсутствие ключа не является ошибкой: Get возвращает ok=false.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	Set(ctx context.Context, key, value string) error

	Delete(ctx context.Context, key string) error
}

// Namespacer выдает представление хранилища с префиксом ключей.
type Namespacer interface {
	Storage

	Namespace(prefix string) Storage
}
