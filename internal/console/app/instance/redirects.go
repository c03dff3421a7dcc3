package instance

import (
	"context"
	"sync"
)

// Redirects запоминает переходы, запрошенные хранилищем сессии,
// чтобы HTTP-слой вернул их клиенту.
type Redirects struct {
	mu      sync.Mutex
	pending string
}

// Navigate запоминает адрес перехода.
func (r *Redirects) Navigate(_ context.Context, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = location
}

// Take возвращает и сбрасывает ожидающий переход.
func (r *Redirects) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	location := r.pending
	r.pending = ""
	return location, location != ""
}
