package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"kimchi/internal/config"
	"kimchi/internal/model"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context) (model.CycleState, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CycleState), args.Error(1)
}

func (m *MockRefresher) Snapshot() model.CycleState {
	args := m.Called()
	return args.Get(0).(model.CycleState)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func successState() model.CycleState {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return model.CycleState{
		Generation:    1,
		Domestic:      &model.Quote{Source: model.SourceDomestic, Value: 110_000_000, Currency: "KRW", FetchedAt: now, Generation: 1},
		International: &model.Quote{Source: model.SourceInternational, Value: 70000, Currency: "USD", FetchedAt: now, Generation: 1},
		FX:            &model.Quote{Source: model.SourceFX, Value: 1450, Currency: "KRW", FetchedAt: now, Generation: 1},
		Premium:       &model.PremiumResult{Value: 8.374384236453203, Display: "8.37", ComputedAt: now, Generation: 1},
		UpdatedAt:     now,
	}
}

func newTestServer(t *testing.T, engine Refresher, cfg config.ServerConfig) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(testLogger())
	srv := httptest.NewServer(NewServer(testLogger(), engine, hub, cfg).Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func decodeView(t *testing.T, resp *http.Response) StateView {
	t.Helper()
	defer resp.Body.Close()
	var v StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_GetPremium(t *testing.T) {
	engine := new(MockRefresher)
	engine.On("Snapshot").Return(successState())
	srv, _ := newTestServer(t, engine, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/api/v1/premium")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	v := decodeView(t, resp)
	assert.Equal(t, "8.37", v.Premium)
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	require.NotNil(t, v.Domestic)
	assert.Equal(t, 110_000_000.0, v.Domestic.Value)
	assert.Equal(t, "USD", v.International.Currency)
}

func TestServer_GetPremium_LoadingAndError(t *testing.T) {
	engine := new(MockRefresher)
	engine.On("Snapshot").Return(model.CycleState{}).Once()

	failed := successState()
	failed.Generation = 2
	failed.Err = errors.New("refresh cycle 2: fx (open-er-api): network error: dial tcp: timeout")
	engine.On("Snapshot").Return(failed).Once()

	srv, _ := newTestServer(t, engine, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/api/v1/premium")
	require.NoError(t, err)
	v := decodeView(t, resp)
	assert.True(t, v.Loading)
	assert.Empty(t, v.Premium)
	assert.Nil(t, v.Domestic)

	resp, err = http.Get(srv.URL + "/api/v1/premium")
	require.NoError(t, err)
	v = decodeView(t, resp)
	assert.Equal(t, model.GenericErrorMessage, v.Error)
	assert.NotContains(t, v.Error, "dial")
	assert.Equal(t, "8.37", v.Premium, "stale premium stays visible next to the error")
}

func TestServer_Refresh(t *testing.T) {
	engine := new(MockRefresher)
	engine.On("Refresh", mock.Anything).Return(successState(), nil).Once()
	srv, _ := newTestServer(t, engine, config.ServerConfig{RefreshRate: 1, RefreshBurst: 1})

	resp, err := http.Post(srv.URL+"/api/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "8.37", decodeView(t, resp).Premium)

	resp, err = http.Post(srv.URL+"/api/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	engine.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestServer_RefreshRequiresPost(t *testing.T) {
	engine := new(MockRefresher)
	srv, _ := newTestServer(t, engine, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/api/v1/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	engine.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, new(MockRefresher), config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "kimchi_http_requests_total")
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServer_WebSocketPush(t *testing.T) {
	engine := new(MockRefresher)
	engine.On("Snapshot").Return(model.CycleState{})
	srv, hub := newTestServer(t, engine, config.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readFrame(t, conn)
	assert.Equal(t, "state", first.Type)
	require.NotNil(t, first.State)
	assert.True(t, first.State.Loading)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishState(successState())
	update := readFrame(t, conn)
	assert.Equal(t, "state", update.Type)
	assert.Equal(t, "8.37", update.State.Premium)

	granted, err := hub.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
	require.NoError(t, hub.Deliver(context.Background(), "Kimchi premium update", "The current kimchi premium is 8.37%."))
	note := readFrame(t, conn)
	assert.Equal(t, "notification", note.Type)
	assert.Equal(t, "Kimchi premium update", note.Title)
	assert.Contains(t, note.Body, "8.37%")
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	engine := new(MockRefresher)
	engine.On("Snapshot").Return(model.CycleState{})
	srv, hub := newTestServer(t, engine, config.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NotPanics(t, func() { hub.PublishState(successState()) })
}
