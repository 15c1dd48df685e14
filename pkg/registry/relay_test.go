package registry_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/scbackend/pkg/broadcast"
	"github.com/cuemby/scbackend/pkg/engine"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/registry"
	"github.com/cuemby/scbackend/pkg/storage"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relay struct {
	reg *registry.Registry
	b   *broadcast.Broadcaster
	url string
}

func newRelay(t *testing.T) *relay {
	t.Helper()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateProject(&types.Project{
		Name: "p1",
		Body: `{"targets":[],"rules":[]}`,
	}))

	b := broadcast.New(broadcast.Options{})
	srv := httptest.NewServer(b.Handler())

	reg := registry.New(registry.Config{
		Factory:   engine.ScriptFactory(engine.ScriptOptions{}),
		Source:    storage.Source{Store: store},
		Publisher: b,
	})

	t.Cleanup(func() {
		reg.Close()
		b.CloseAll()
		srv.Close()
		_ = store.Close()
	})
	return &relay{reg: reg, b: b, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

// subscribe connects and completes the handshake, so the subscriber is
// registered once it returns.
func (r *relay) subscribe(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, r.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "handshake"}))
	var reply map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	require.Equal(t, "handshake", reply["type"])
	return conn
}

func (r *relay) start(t *testing.T, id string) types.InstanceInfo {
	t.Helper()
	require.NoError(t, r.reg.AddInstance(id))
	var info types.InstanceInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = r.reg.Get(id)
		return err == nil && info.State == types.InstanceStateRunning
	}, 2*time.Second, 5*time.Millisecond)
	return info
}

func (r *relay) trigger(t *testing.T, id string, x int) {
	t.Helper()
	require.NoError(t, r.reg.TriggerExternal(id, events.New(events.KindMessage, map[string]any{"x": x})))
	r.reg.Wait()
}

func nextEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func assertMessage(t *testing.T, conn *websocket.Conn, x int) {
	t.Helper()
	msg := nextEvent(t, conn)
	assert.Equal(t, "event", msg["type"])
	assert.Equal(t, "message", msg["event"])
	assert.Equal(t, map[string]any{"x": float64(x)}, msg["data"])
}

func TestTriggerReachesEverySubscriberOnce(t *testing.T) {
	r := newRelay(t)
	first := r.subscribe(t)
	second := r.subscribe(t)
	r.start(t, "p1")

	r.trigger(t, "p1", 1)
	late := r.subscribe(t)
	r.trigger(t, "p1", 2)

	// A duplicate of x=1 or a lifecycle event would show up before x=2.
	for _, conn := range []*websocket.Conn{first, second} {
		assertMessage(t, conn, 1)
		assertMessage(t, conn, 2)
	}
	assertMessage(t, late, 2)
}

func TestRemoveThenReAddRelaysFromFreshInstance(t *testing.T) {
	r := newRelay(t)
	sub := r.subscribe(t)

	before := r.start(t, "p1")
	r.trigger(t, "p1", 1)
	assertMessage(t, sub, 1)

	require.NoError(t, r.reg.RemoveInstance("p1"))
	assert.False(t, r.reg.Has("p1"))
	assert.ErrorIs(t, r.reg.TriggerExternal("p1", events.New(events.KindMessage, nil)), registry.ErrInstanceNotFound)

	after := r.start(t, "p1")
	assert.NotEqual(t, before.RunID, after.RunID)

	r.trigger(t, "p1", 2)
	assertMessage(t, sub, 2)
}
