package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"moviesearch-client/internal/config"
	"moviesearch-client/internal/handler"
	"moviesearch-client/internal/pkg/logger"
	internalWS "moviesearch-client/internal/websocket"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/search"
	"moviesearch-client/pkg/searchapi"
	"moviesearch-client/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	healthErr error
	readyErr  error
}

func (f fakeUpstream) Health(ctx context.Context) (*movie.HealthResponse, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &movie.HealthResponse{Status: "ok"}, nil
}

func (f fakeUpstream) Ready(ctx context.Context) (*movie.ReadyResponse, error) {
	if f.readyErr != nil {
		return nil, f.readyErr
	}
	return &movie.ReadyResponse{Status: "ready", ModelsLoaded: true, LoadTimes: map[string]float64{"encoder": 2}}, nil
}

type fakeRecorder struct {
	records map[string]*store.SessionRecord
}

func (f fakeRecorder) Consume(ctx context.Context) error { return nil }

func (f fakeRecorder) Get(id string) (*store.SessionRecord, bool) {
	r, ok := f.records[id]
	return r, ok
}

func (f fakeRecorder) Recent(limit int) []*store.SessionRecord {
	out := []*store.SessionRecord{}
	for _, r := range f.records {
		out = append(out, r)
	}
	return out
}

func newTestApp(t *testing.T, upstream fakeUpstream) *fiber.App {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Environment: "production", CorsAllowedOrigins: "*"}}

	settled := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := fakeRecorder{records: map[string]*store.SessionRecord{
		"abc": {ID: "abc", Query: "heist", Status: store.StatusSettled, ResultTotal: 7, SettledAt: &settled, Events: []string{}},
	}}

	h := handler.NewSearchHandler(
		upstream,
		searchapi.NewPosterResolver("", ""),
		rec,
		internalWS.NewHub(nil),
		func(l search.Listener) internalWS.Session { return search.NewOrchestrator(nil, nil, nil, search.WithListener(l)) },
		time.Millisecond,
		logger.NewNop(),
	)
	return NewApp(cfg, logger.NewNop(), h)
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, fakeUpstream{})
	code, body := get(t, app, "/api/health")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestUpstreamHealth(t *testing.T) {
	code, body := get(t, newTestApp(t, fakeUpstream{}), "/api/upstream/health")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["ready"])

	code, body = get(t, newTestApp(t, fakeUpstream{healthErr: errors.New("connection refused")}), "/api/upstream/health")
	assert.Equal(t, 502, code)
	assert.Equal(t, "unreachable", body["status"])

	code, body = get(t, newTestApp(t, fakeUpstream{readyErr: errors.New("loading")}), "/api/upstream/health")
	assert.Equal(t, 503, code)
	assert.Equal(t, false, body["ready"])
}

func TestPoster(t *testing.T) {
	app := newTestApp(t, fakeUpstream{})

	code, body := get(t, app, "/api/poster?path=/abc.jpg&size=w300")
	assert.Equal(t, 200, code)
	assert.Equal(t, "https://image.tmdb.org/t/p/w300/abc.jpg", body["url"])

	_, body = get(t, app, "/api/poster?size=w300")
	assert.Equal(t, "/placeholder-poster.svg", body["url"])

	_, body = get(t, app, "/api/poster?path=/abc.jpg&size=huge")
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/abc.jpg", body["url"])

	resp, err := app.Test(httptest.NewRequest("GET", "/api/poster?path=/abc.jpg&redirect=true", nil))
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/abc.jpg", resp.Header.Get("Location"))
}

func TestSessions(t *testing.T) {
	app := newTestApp(t, fakeUpstream{})

	code, body := get(t, app, "/api/sessions/abc")
	assert.Equal(t, 200, code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "heist", data["query"])
	assert.Equal(t, store.StatusSettled, data["status"])

	code, body = get(t, app, "/api/sessions/missing")
	assert.Equal(t, 404, code)
	assert.Equal(t, "session not found", body["error"])

	code, body = get(t, app, "/api/sessions?limit=5")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["total"])

	code, _ = get(t, app, "/api/sessions?limit=500")
	assert.Equal(t, 400, code)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	code, _ := get(t, newTestApp(t, fakeUpstream{}), "/api/ws/search")
	assert.Equal(t, fiber.StatusUpgradeRequired, code)
}

func TestErrorHandlerMapsSearchErrors(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{CorsAllowedOrigins: "*"}}
	app := NewApp(cfg, logger.NewNop(), handler.NewSearchHandler(fakeUpstream{}, searchapi.NewPosterResolver("", ""), fakeRecorder{}, internalWS.NewHub(nil), nil, 0, logger.NewNop()))
	app.Get("/boom", func(c *fiber.Ctx) error {
		return searchapi.NewError(searchapi.KindTransport, "search service unreachable", errors.New("dial"))
	})

	code, body := get(t, app, "/boom")
	assert.Equal(t, 503, code)
	assert.Equal(t, "search service unreachable", body["error"])
	assert.Equal(t, "transport", body["kind"])
	assert.Equal(t, true, body["retryable"])
}
