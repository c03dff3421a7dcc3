package storage

import (
	"context"

	"adminconsole/internal/console/ports/storage"
)

type prefixed struct {
	inner  storage.Storage
	prefix string
}

// Prefixed оборачивает хранилище, добавляя prefix ко всем ключам.
func Prefixed(inner storage.Storage, prefix string) storage.Storage {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
