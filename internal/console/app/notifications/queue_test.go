package notifications_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/internal/console/app/notifications"
	"adminconsole/internal/console/domain/entities"
)

func add(t *testing.T, q *notifications.Queue, kind entities.NotificationKind, message string) entities.Notification {
	t.Helper()
	n, err := q.Add(kind, message)
	require.NoError(t, err)
	return n
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	q := notifications.NewQueue(time.Minute)
	t.Cleanup(q.Close)

	first := add(t, q, entities.NotificationSuccess, "Saved")
	second := add(t, q, entities.NotificationError, "Failed")
	third := add(t, q, entities.NotificationInfo, "FYI")

	items := q.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, entities.NotificationError, items[1].Kind)
	assert.Equal(t, "Failed", items[1].Message)
}

func TestIDsAreUnique(t *testing.T) {
	q := notifications.NewQueue(time.Minute)
	t.Cleanup(q.Close)

	seen := make(map[string]struct{})
	for range 100 {
		n := add(t, q, entities.NotificationInfo, "x")
		_, dup := seen[n.ID]
		require.False(t, dup)
		seen[n.ID] = struct{}{}
	}
}

func TestRemove(t *testing.T) {
	q := notifications.NewQueue(time.Minute)
	t.Cleanup(q.Close)

	a := add(t, q, entities.NotificationInfo, "a")
	b := add(t, q, entities.NotificationInfo, "b")

	assert.True(t, q.Remove(a.ID))
	assert.False(t, q.Remove(a.ID), "second removal is a no-op")
	assert.False(t, q.Remove("missing"))

	items := q.Items()
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)
}

func TestAutoExpiry(t *testing.T) {
	q := notifications.NewQueue(50 * time.Millisecond)
	t.Cleanup(q.Close)

	n := add(t, q, entities.NotificationSuccess, "Signed in")
	require.Len(t, q.Items(), 1)

	assert.Eventually(t, func() bool { return len(q.Items()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, q.Remove(n.ID))
}

func TestExpiryIsPerNotification(t *testing.T) {
	q := notifications.NewQueue(150 * time.Millisecond)
	t.Cleanup(q.Close)

	add(t, q, entities.NotificationInfo, "old")
	time.Sleep(100 * time.Millisecond)
	fresh := add(t, q, entities.NotificationInfo, "fresh")

	assert.Eventually(t, func() bool {
		items := q.Items()
		return len(items) == 1 && items[0].ID == fresh.ID
	}, time.Second, 5*time.Millisecond)
}

func TestDefaultTTL(t *testing.T) {
	q := notifications.NewQueue(0)
	t.Cleanup(q.Close)

	add(t, q, entities.NotificationInfo, "stays")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, q.Items(), 1)
}

func TestSubscribe(t *testing.T) {
	q := notifications.NewQueue(time.Minute)
	t.Cleanup(q.Close)

	var mu sync.Mutex
	var sizes []int
	unsubscribe := q.Subscribe(func(items []entities.Notification) {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(items))
	})

	n := add(t, q, entities.NotificationInfo, "a")
	add(t, q, entities.NotificationInfo, "b")
	q.Remove(n.ID)
	unsubscribe()
	add(t, q, entities.NotificationInfo, "c")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1}, sizes)
}

func TestCloseStopsTimers(t *testing.T) {
	q := notifications.NewQueue(20 * time.Millisecond)

	var calls int
	var mu sync.Mutex
	q.Subscribe(func([]entities.Notification) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	add(t, q, entities.NotificationInfo, "a")
	q.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, q.Items())
	_, err := q.Add(entities.NotificationInfo, "after close")
	assert.ErrorIs(t, err, notifications.ErrQueueClosed)
	assert.Empty(t, q.Items())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "expiry after close must not notify")
}
