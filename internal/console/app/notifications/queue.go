// Package notifications содержит очередь временных уведомлений интерфейса.
package notifications

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"adminconsole/internal/console/domain/entities"
	"adminconsole/pkg/metrics"
)

// DefaultTTL - время жизни уведомления по умолчанию.
const DefaultTTL = 5 * time.Second

// ErrQueueClosed возвращается Add после Close.
var ErrQueueClosed = errors.New("notification queue closed")

type entry struct {
	item  entities.Notification
	timer *time.Timer
}

// Queue хранит уведомления в порядке добавления. Каждое уведомление удаляется
// по своему таймеру или явным Remove, смотря что наступит раньше.
type Queue struct {
	ttl time.Duration

	mu      sync.Mutex
	entries []entry
	closed  bool

	subsMu      sync.Mutex
	subscribers map[int]func([]entities.Notification)
	order       []int
	nextSubID   int
}

// NewQueue создает очередь. ttl <= 0 означает DefaultTTL.
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl:         ttl,
		subscribers: make(map[int]func([]entities.Notification)),
	}
}

// Add добавляет уведомление и планирует его удаление.
// Закрытая очередь ничего не сохраняет и возвращает ErrQueueClosed.
func (q *Queue) Add(kind entities.NotificationKind, message string) (entities.Notification, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return entities.Notification{}, ErrQueueClosed
	}
	item := entities.Notification{ID: uuid.NewString(), Kind: kind, Message: message}
	timer := time.AfterFunc(q.ttl, func() { q.Remove(item.ID) })
	q.entries = append(q.entries, entry{item: item, timer: timer})
	items := q.snapshot()
	q.mu.Unlock()

	metrics.Notifications.WithLabelValues(string(kind)).Inc()
	q.notify(items)
	return item, nil
}

// Remove удаляет уведомление по id. Удаление отсутствующего id ничего не делает.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	idx := -1
	for i, e := range q.entries {
		if e.item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.entries[idx].timer.Stop()
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	items := q.snapshot()
	q.mu.Unlock()

	q.notify(items)
	return true
}

// Items возвращает копию текущих уведомлений в порядке добавления.
func (q *Queue) Items() []entities.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Subscribe регистрирует наблюдателя изменений очереди.
func (q *Queue) Subscribe(fn func([]entities.Notification)) (unsubscribe func()) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()

	id := q.nextSubID
	q.nextSubID++
	q.subscribers[id] = fn
	q.order = append(q.order, id)

	return func() {
		q.subsMu.Lock()
		defer q.subsMu.Unlock()
		delete(q.subscribers, id)
		for i, v := range q.order {
			if v == id {
				q.order = append(q.order[:i], q.order[i+1:]...)
				break
			}
		}
	}
}

// Close останавливает все таймеры и очищает очередь. Последующие Add игнорируются.
func (q *Queue) Close() {
	q.mu.Lock()
	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = nil
	q.closed = true
	q.mu.Unlock()
}

func (q *Queue) snapshot() []entities.Notification {
	items := make([]entities.Notification, len(q.entries))
	for i, e := range q.entries {
		items[i] = e.item
	}
	return items
}

func (q *Queue) notify(items []entities.Notification) {
	q.subsMu.Lock()
	fns := make([]func([]entities.Notification), 0, len(q.subscribers))
	for _, id := range q.order {
		if fn, ok := q.subscribers[id]; ok {
			fns = append(fns, fn)
		}
	}
	q.subsMu.Unlock()

	for _, fn := range fns {
		cp := make([]entities.Notification, len(items))
		copy(cp, items)
		fn(cp)
	}
}
