package instance_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/internal/console/adapters/api"
	"adminconsole/internal/console/adapters/api/apitest"
	"adminconsole/internal/console/adapters/storage"
	"adminconsole/internal/console/app/instance"
	"adminconsole/internal/console/app/session"
	"adminconsole/internal/console/config"
	"adminconsole/internal/console/domain/entities"
	apiPorts "adminconsole/internal/console/ports/api"
)

func newRegistry(t *testing.T, idle time.Duration) (*instance.Registry, *storage.MemoryStorage, *apitest.Server) {
	t.Helper()

	srv := apitest.NewServer(t)
	client, err := api.New(&config.APIConfig{BaseURL: srv.URL, RPCPath: "/trpc"})
	require.NoError(t, err)

	mem := storage.NewMemoryStorage()
	settings := instance.Settings{
		NotificationTTL:    time.Minute,
		SidebarDefaultOpen: true,
		LoginPath:          "/login",
	}
	reg := instance.NewRegistry(mem, client, settings, idle)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	return reg, mem, srv
}

func get(t *testing.T, reg *instance.Registry, id string) *instance.Instance {
	t.Helper()
	inst, err := reg.Get(context.Background(), id)
	require.NoError(t, err)
	return inst
}

// stalledGateway задерживает проверку сессии с токеном stalledToken до release.
type stalledGateway struct {
	apiPorts.Gateway
	entered  chan struct{}
	release  chan struct{}
	validate atomic.Int32
}

const stalledToken = "stalled-token"

func (g *stalledGateway) ValidateSession(ctx context.Context, tokens apiPorts.TokenSource) bool {
	if token, _ := tokens.ReadToken(ctx); token == stalledToken {
		g.validate.Add(1)
		close(g.entered)
		<-g.release
	}
	return true
}

func TestGetReturnsSameInstance(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Minute)

	a := get(t, reg, "a")
	assert.Same(t, a, get(t, reg, "a"))
	assert.NotSame(t, a, get(t, reg, "b"))
	assert.Equal(t, 2, reg.Len())
}

func TestInstancesAreIsolated(t *testing.T) {
	reg, mem, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	a := get(t, reg, "a")
	b := get(t, reg, "b")

	_, err := a.Service.Login(ctx, apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)

	assert.True(t, a.Session.IsAuthenticated())
	assert.False(t, b.Session.IsAuthenticated())

	_, ok, err := mem.Get(ctx, "a:"+session.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = mem.Get(ctx, "b:"+session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictedInstanceRestoresFromStorage(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	first := get(t, reg, "a")
	_, err := first.Service.Login(ctx, apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)
	_, err = first.Sidebar.Toggle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Sweep(ctx, time.Now().Add(2*time.Minute)))
	assert.Zero(t, reg.Len())

	restored := get(t, reg, "a")
	assert.NotSame(t, first, restored)
	assert.True(t, restored.Session.IsAuthenticated())
	identity, ok := restored.Session.Identity()
	require.True(t, ok)
	assert.Equal(t, "Admin", identity.Name)
	assert.False(t, restored.Sidebar.Open())
	assert.Empty(t, restored.Notifications.Items(), "notifications are not persisted")
}

func TestSweepKeepsActiveInstances(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	get(t, reg, "idle")
	get(t, reg, "busy")

	later := time.Now().Add(90 * time.Second)
	reg.Touch("busy", later)

	assert.Equal(t, 1, reg.Sweep(ctx, later))
	assert.Equal(t, 1, reg.Len())
}

func TestLogoutRecordsRedirect(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	inst := get(t, reg, "a")
	_, err := inst.Service.Login(ctx, apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)

	<-inst.Service.Logout(ctx)

	location, ok := inst.Redirects.Take()
	require.True(t, ok)
	assert.Equal(t, "/login", location)
	_, ok = inst.Redirects.Take()
	assert.False(t, ok)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	inst := get(t, reg, "a")
	_, err := inst.Notifications.Add(entities.NotificationInfo, "hello")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		reg.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, inst.Notifications.Items())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSlowRestoreDoesNotBlockOtherIDs(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStorage()
	require.NoError(t, mem.Set(ctx, "a:"+session.KeyToken, `"`+stalledToken+`"`))
	require.NoError(t, mem.Set(ctx, "a:"+session.KeyUser, `{"id":"1","email":"admin@example.com","name":"Admin","role":"admin"}`))

	gateway := &stalledGateway{entered: make(chan struct{}), release: make(chan struct{})}
	reg := instance.NewRegistry(mem, gateway, instance.Settings{ValidateOnStart: true}, time.Minute)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	var (
		wg      sync.WaitGroup
		results [2]*instance.Instance
	)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := reg.Get(ctx, "a")
			assert.NoError(t, err)
			results[i] = inst
		}()
	}
	<-gateway.entered

	done := make(chan *instance.Instance)
	go func() {
		inst, err := reg.Get(ctx, "b")
		assert.NoError(t, err)
		done <- inst
	}()

	select {
	case b := <-done:
		require.NotNil(t, b)
		assert.False(t, b.Session.IsAuthenticated())
	case <-time.After(time.Second):
		t.Fatal("Get(b) waited for the restore of a")
	}

	close(gateway.release)
	wg.Wait()

	require.NotNil(t, results[0])
	assert.Same(t, results[0], results[1])
	assert.True(t, results[0].Session.IsAuthenticated())
	assert.Equal(t, int32(1), gateway.validate.Load())
	assert.Equal(t, 2, reg.Len())
}

func TestGetAfterCloseFails(t *testing.T) {
	reg, _, _ := newRegistry(t, time.Minute)
	get(t, reg, "a")

	require.NoError(t, reg.Close(context.Background()))

	inst, err := reg.Get(context.Background(), "a")
	assert.ErrorIs(t, err, instance.ErrRegistryClosed)
	assert.Nil(t, inst)
	assert.Zero(t, reg.Len())
}
