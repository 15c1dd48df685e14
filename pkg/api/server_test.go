package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/scbackend/pkg/engine"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/cuemby/scbackend/pkg/registry"
	"github.com/cuemby/scbackend/pkg/storage"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = `{"targets":[],"rules":[{"on":"ping","emit":"message"}]}`

type published struct {
	mu  sync.Mutex
	evs []events.Event
}

func (p *published) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
}

func (p *published) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.evs))
	for _, ev := range p.evs {
		out = append(out, ev.Kind)
	}
	return out
}

type testEnv struct {
	store storage.Store
	reg   *registry.Registry
	pub   *published
	srv   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	pub := &published{}
	reg := registry.New(registry.Config{
		Factory:   engine.ScriptFactory(engine.ScriptOptions{}),
		Source:    storage.Source{Store: store},
		Publisher: pub,
	})
	t.Cleanup(reg.Close)
	return &testEnv{store: store, reg: reg, pub: pub, srv: NewServer(store, reg)}
}

func (e *testEnv) seed(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, e.store.CreateProject(&types.Project{Name: name, Body: program}))
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestCreateProject(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"ok", `{"name":"demo","code":"{}","description":"d"}`, http.StatusCreated, ""},
		{"body alias", `{"name":"demo","body":"{}"}`, http.StatusCreated, ""},
		{"missing code", `{"name":"demo"}`, http.StatusBadRequest, "Project name and code are required"},
		{"missing name", `{"code":"{}"}`, http.StatusBadRequest, "Project name and code are required"},
		{"bad id", `{"name":"a b","code":"{}"}`, http.StatusBadRequest, "Invalid project id"},
		{"code not json", `{"name":"demo","code":"{nope"}`, http.StatusBadRequest, "Project code must be valid JSON"},
		{"body not json", `{"name":`, http.StatusBadRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, http.MethodPost, "/api/projects", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				resp := decode[ErrorResponse](t, w)
				assert.Equal(t, tt.wantError, resp.Error)
				assert.Equal(t, tt.wantStatus, resp.Code)
			}
		})
	}
}

func TestCreateProjectDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodPost, "/api/projects", `{"name":"demo","code":"{}"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateProjectStoresMeta(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/projects", `{"name":"demo","code":"{}","description":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	p, err := env.store.GetProject("demo")
	require.NoError(t, err)
	var meta types.ProjectMeta
	require.NoError(t, json.Unmarshal([]byte(p.Meta), &meta))
	assert.Equal(t, "first", meta.Description)
}

func TestGetAndListProjects(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/projects", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	env.seed(t, "demo")

	for _, path := range []string{"/api/projects/demo", "/project/demo"} {
		w = env.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, program, decode[types.Project](t, w).Body)
	}

	for _, path := range []string{"/api/projects", "/projects"} {
		w = env.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, decode[[]types.Project](t, w), 1)
	}

	w = env.do(t, http.MethodGet, "/api/projects/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode[ErrorResponse](t, w).Error)
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodPut, "/api/projects/demo", `{"body":"{\"targets\":[1]}"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	p, _ := env.store.GetProject("demo")
	assert.Equal(t, `{"targets":[1]}`, p.Body)

	w = env.do(t, http.MethodPut, "/api/projects/demo", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/projects/demo", `{"body":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/projects/missing", `{"body":"{}"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProjectDescription(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")
	before, err := env.store.GetProject("demo")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/api/projects/demo", `{"description":"greeter"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	after, err := env.store.GetProject("demo")
	require.NoError(t, err)
	assert.Equal(t, before.Body, after.Body)
	assert.Equal(t, "greeter", types.DecodeMeta(after.Meta).Description)

	w = env.do(t, http.MethodPut, "/api/projects/missing", `{"description":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProjectStopsInstance(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")
	require.NoError(t, env.reg.AddInstance("demo"))

	w := env.do(t, http.MethodDelete, "/api/projects/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.reg.Has("demo"))

	_, err := env.store.GetProject("demo")
	assert.ErrorIs(t, err, storage.ErrProjectNotFound)

	w = env.do(t, http.MethodDelete, "/api/projects/demo", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunAndStopProject(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodPost, "/api/projects/demo/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[MessageResponse](t, w)
	assert.Equal(t, "demo", resp.ProjectID)
	assert.Equal(t, "running", resp.Status)
	assert.True(t, env.reg.Has("demo"))

	// Running again reuses the instance.
	w = env.do(t, http.MethodPost, "/api/projects/demo/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.reg.List(), 1)

	w = env.do(t, http.MethodPost, "/api/projects/demo/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode[MessageResponse](t, w).Status)
	assert.False(t, env.reg.Has("demo"))

	w = env.do(t, http.MethodPost, "/api/projects/demo/stop", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project is not running", decode[ErrorResponse](t, w).Error)
}

func TestRunMissingProject(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/projects/missing/run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.reg.Has("missing"))

	w = env.do(t, http.MethodPost, "/api/projects/missing/stop", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode[ErrorResponse](t, w).Error)
}

func TestRunners(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodPost, "/api/runners/demo", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/runners/demo", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/runners/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found for this runner ID", decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/api/runners/bad.id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid runner id", decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodGet, "/api/runners", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]types.InstanceInfo](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "demo", list[0].ID)

	w = env.do(t, http.MethodGet, "/api/runners/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/runners/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/runners/demo", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/runners/demo", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacyRunnerRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodGet, "/runner/add/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/runner/add/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/runner/add/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/runners", "")
	assert.Len(t, decode[[]types.InstanceInfo](t, w), 1)

	w = env.do(t, http.MethodGet, "/runner/remove/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/runner/remove/demo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.reg.Has("demo"))
}

func TestTriggerRunner(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")
	require.NoError(t, env.reg.AddInstance("demo"))

	w := env.do(t, http.MethodPost, "/api/runners/demo/trigger", `{"event":"message","data":{"text":"hi"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/runners/demo/trigger", `{"data":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event name is required", decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/api/runners/ghost/trigger", `{"event":"message"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Eventually(t, func() bool {
		for _, k := range env.pub.kinds() {
			if k == events.KindMessage {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTriggerRunsEngineRules(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "demo")

	w := env.do(t, http.MethodPost, "/api/projects/demo/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		info, err := env.reg.Get("demo")
		return err == nil && info.State == types.InstanceStateRunning
	}, 2*time.Second, 5*time.Millisecond)

	w = env.do(t, http.MethodPost, "/runner/demo/trigger", `{"event":"ping","data":"pong"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		return len(env.pub.kinds()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Kind{events.KindMessage}, env.pub.kinds())
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range metrics.CriticalComponents {
		metrics.RegisterComponent(name, true, "")
	}

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "scbackend_api_requests_total"))

	w = env.do(t, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	env := newTestEnv(t)
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/projects/{id}", "404")
	before := testutil.ToFloat64(counter)

	env.do(t, http.MethodGet, "/api/projects/one", "")
	env.do(t, http.MethodGet, "/api/projects/two", "")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
