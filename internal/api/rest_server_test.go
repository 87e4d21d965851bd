package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/annel0/coin-collector/internal/auth"
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/replay"
	"github.com/annel0/coin-collector/internal/server"
	"github.com/annel0/coin-collector/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGame struct {
	mu      sync.Mutex
	snap    server.Snapshot
	in, out time.Duration
	kicked  []game.PlayerID
}

func (g *fakeGame) Snapshot() server.Snapshot { return g.snap }

func (g *fakeGame) SetLatency(in, out time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.in, g.out = in, out
	return nil
}

func (g *fakeGame) Kick(id game.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kicked = append(g.kicked, id)
	return nil
}

type testAPI struct {
	rs     *RestServer
	game   *fakeGame
	scores *storage.MemoryScoreRepo
	store  *replay.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("", time.Hour)
	require.NoError(t, err)
	store, err := replay.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g := &fakeGame{snap: server.Snapshot{
		Tick: 42,
		Players: []server.PlayerInfo{
			{SessionID: "s1", State: game.PlayerState{ID: 1, Score: 3}},
			{SessionID: "s2", State: game.PlayerState{ID: 2}},
		},
		Coins:        []game.CoinState{{ID: 0, Active: true}, {ID: 1}},
		InboundDelay: 200 * time.Millisecond,
	}}
	scores := storage.NewMemoryScoreRepo()
	reg := prometheus.NewRegistry()

	rs := NewRestServer(Config{
		Game:       g,
		Scores:     scores,
		Replays:    store,
		Issuer:     issuer,
		Admin:      auth.NewAdminAccount("admin", hash),
		Logger:     logging.NewWriterLogger("api", io.Discard, logging.ERROR),
		Registerer: reg,
		Gatherer:   reg,
	})
	return &testAPI{rs: rs, game: g, scores: scores, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.rs.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (a *testAPI) login(t *testing.T) string {
	t.Helper()
	w, _ := a.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "hunter2"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	w, _ := a.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tick":42`)
}

func TestStatus(t *testing.T) {
	a := newTestAPI(t)
	w, _ := a.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint32(42), body.Data.Tick)
	assert.Equal(t, 2, body.Data.Players)
	assert.Equal(t, 1, body.Data.ActiveCoins)
	assert.Equal(t, int64(200), body.Data.InboundDelay)
	assert.Positive(t, body.Data.Process.Goroutines)
}

func TestPlayers(t *testing.T) {
	a := newTestAPI(t)
	w, _ := a.do(t, http.MethodGet, "/api/players", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []server.PlayerInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "s1", body.Data[0].SessionID)
}

func TestLeaderboard(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, a.scores.Save(ctx, storage.ScoreRecord{SessionID: "a", PlayerID: 1, Score: 2}))
	require.NoError(t, a.scores.Save(ctx, storage.ScoreRecord{SessionID: "b", PlayerID: 2, Score: 9}))

	w, _ := a.do(t, http.MethodGet, "/api/leaderboard?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []storage.ScoreRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "b", body.Data[0].SessionID)

	w, _ = a.do(t, http.MethodGet, "/api/leaderboard?limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newTestAPI(t)
	w, _ := a.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_RequiresToken(t *testing.T) {
	a := newTestAPI(t)

	w, _ := a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": 0, "outbound_ms": 0}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": 0, "outbound_ms": 0}, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	notAdmin, err := a.rs.issuer.Generate(&auth.User{Username: "viewer"})
	require.NoError(t, err)
	w, _ = a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": 0, "outbound_ms": 0}, notAdmin)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_SetLatency(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)

	w, resp := a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": 50, "outbound_ms": 0}, token)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 50*time.Millisecond, a.game.in)
	assert.Zero(t, a.game.out)

	w, _ = a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": -1, "outbound_ms": 0}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(t, http.MethodPut, "/api/admin/latency", map[string]int{"inbound_ms": 10}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "оба поля обязательны")
}

func TestAdmin_Kick(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)

	w, _ := a.do(t, http.MethodPost, "/api/admin/players/2/kick", nil, token)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []game.PlayerID{2}, a.game.kicked)

	w, _ = a.do(t, http.MethodPost, "/api/admin/players/9/kick", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/admin/players/abc/kick", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_Replays(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)
	for _, tick := range []uint32{0, 3, 6} {
		require.NoError(t, a.store.SaveFrame("run1", &game.WorldState{Tick: tick}, time.Now()))
	}

	w, _ := a.do(t, http.MethodGet, "/api/admin/replays", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions struct {
		Data []replay.SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Equal(t, []replay.SessionInfo{{ID: "run1", Frames: 3, FirstTick: 0, LastTick: 6}}, sessions.Data)

	w, _ = a.do(t, http.MethodGet, "/api/admin/replays/run1?from=3&limit=10", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var frames struct {
		Data []replay.Frame `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frames))
	require.Len(t, frames.Data, 2)
	assert.Equal(t, uint32(3), frames.Data[0].Tick)

	w, _ = a.do(t, http.MethodGet, "/api/admin/replays/nope", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodGet, "/health", nil, "")

	w, _ := a.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coin_collector_api_http_request_duration_seconds")
}
