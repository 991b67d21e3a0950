package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/metrics"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/internal/settings"
	"noteenvelope-sync/internal/transport"
	"noteenvelope-sync/internal/transport/loopback"
	"noteenvelope-sync/pkg/logging"
	"noteenvelope-sync/pkg/seal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type apiClient struct {
	t      *testing.T
	router http.Handler
	token  string
}

func newAPI(t *testing.T, token string) *apiClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	backend, err := repository.OpenBadgerInMemory()
	require.NoError(t, err)
	store := repository.NewStore(backend)
	t.Cleanup(func() { store.Close() })

	logger := logging.Discard()
	bus := loopback.NewBus()
	sw := transport.NewSwitch(16)
	notices := replication.NewNotices()
	m := metrics.New(prometheus.NewRegistry())
	d := replication.NewDispatcher(replication.Config{DeviceID: "dev-a"}, sw, store, notices, m, logger)
	engine := replication.NewEngine(d, sw.Inbound(), 64, m, logger, replication.WithResyncInterval(time.Hour))
	go engine.Run(ctx)

	open := func(ctx context.Context, box *seal.Box) transport.Transport {
		return bus.Join(box.Topic())
	}
	syncService := service.NewSyncService("dev-a", settings.NewStore(t.TempDir(), logger), sw, open, notices, logger)

	router := NewRouter(Handlers{
		Notes:     NewNoteHandler(service.NewNoteService(engine, store, logger), logger),
		Envelopes: NewEnvelopeHandler(service.NewEnvelopeService(engine, store), logger),
		Labels:    NewLabelHandler(service.NewLabelService(engine, store), logger),
		Sync: NewSyncHandler(syncService, service.NewConflictService(store.Conflicts),
			service.NewDeviceService("dev-a", store.Devices), logger),
		Transfer: NewTransferHandler(service.NewTransferService(engine, store, logger), logger),
	}, RouterConfig{
		APIToken:       token,
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})
	return &apiClient{t: t, router: router, token: token}
}

func (c *apiClient) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRouter_NoteLifecycle(t *testing.T) {
	api := newAPI(t, "")

	code, env := api.do("POST", "/api/v1/notes", map[string]any{"title": "Hello", "content": "v1"})
	require.Equal(t, http.StatusCreated, code)
	created := decodeData[domain.Note](t, env)
	assert.Equal(t, int64(1), created.Version)

	code, env = api.do("PUT", "/api/v1/notes/"+created.ID, map[string]any{"content": "v2"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), decodeData[domain.Note](t, env).Version)

	code, env = api.do("GET", "/api/v1/notes/"+created.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, code)
	versions := decodeData[[]domain.VersionSnapshot](t, env)
	require.Len(t, versions, 1)
	assert.Equal(t, "v1", versions[0].Content)

	code, env = api.do("POST", "/api/v1/notes/"+created.ID+"/versions/1/restore", nil)
	require.Equal(t, http.StatusOK, code)
	restored := decodeData[domain.Note](t, env)
	assert.Equal(t, "v1", restored.Content)
	assert.Equal(t, int64(1), restored.RestoredFrom)

	code, _ = api.do("POST", "/api/v1/notes/"+created.ID+"/versions/abc/restore", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do("POST", "/api/v1/notes/"+created.ID+"/versions/9/restore", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do("GET", "/api/v1/notes?q=hello", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]domain.Note](t, env), 1)

	code, _ = api.do("DELETE", "/api/v1/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, env = api.do("GET", "/api/v1/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestRouter_Validation(t *testing.T) {
	api := newAPI(t, "")

	code, _ := api.do("POST", "/api/v1/labels", map[string]any{"name": "x", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do("GET", "/api/v1/notes?sort=random", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do("POST", "/api/v1/notes/missing/comments", map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env := api.do("PUT", "/api/v1/sync/settings", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "sync password required to enable sync", env.Error)
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newAPI(t, "local-token")

	code, _ := api.do("GET", "/api/v1/labels", nil)
	assert.Equal(t, http.StatusOK, code)

	api.token = ""
	code, _ = api.do("GET", "/api/v1/labels", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_SyncAndDevices(t *testing.T) {
	api := newAPI(t, "")

	code, env := api.do("PUT", "/api/v1/sync/settings", map[string]any{"enabled": true, "password": "correct horse"})
	require.Equal(t, http.StatusOK, code)
	status := decodeData[domain.SyncStatus](t, env)
	assert.True(t, status.Active)

	code, env = api.do("GET", "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, code)
	devices := decodeData[[]domain.Device](t, env)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsSelf)

	code, env = api.do("GET", "/api/v1/sync/conflicts?note_id=n1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]domain.Conflict](t, env))
}

func TestRouter_EnvelopeCascadeAndTransfer(t *testing.T) {
	api := newAPI(t, "")

	code, env := api.do("POST", "/api/v1/envelopes", map[string]any{"name": "Inbox"})
	require.Equal(t, http.StatusCreated, code)
	inbox := decodeData[domain.EnvelopeResponse](t, env)

	code, env = api.do("POST", "/api/v1/notes", map[string]any{"title": "filed", "envelope_id": inbox.ID})
	require.Equal(t, http.StatusCreated, code)
	note := decodeData[domain.Note](t, env)

	code, env = api.do("GET", "/api/v1/envelopes/"+inbox.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decodeData[domain.EnvelopeResponse](t, env).NoteCount)

	code, env = api.do("GET", "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, code)
	exported := decodeData[domain.ExportData](t, env)
	assert.Len(t, exported.Notes, 1)

	code, env = api.do("POST", "/api/v1/import", map[string]any{"data": exported})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.ImportResult{Unchanged: 2}, decodeData[domain.ImportResult](t, env))

	code, _ = api.do("DELETE", "/api/v1/envelopes/"+inbox.ID, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, env = api.do("GET", "/api/v1/notes/"+note.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[domain.Note](t, env).EnvelopeID)

	code, _ = api.do("POST", "/api/v1/import", map[string]any{"version": 7})
	assert.Equal(t, http.StatusBadRequest, code)
}
