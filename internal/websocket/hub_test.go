package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg HubConfig) (*Hub, string) {
	t.Helper()

	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, header http.Header) *websocket.Conn {
	t.Helper()

	before := hub.GetStats().TotalConnections
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.GetStats().TotalConnections > before
	}, time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestBroadcastRuleUpdated(t *testing.T) {
	hub, url := startHub(t, HubConfig{BroadcastRuleUpdates: true})
	conn := dial(t, hub, url, nil)

	hub.BroadcastEvent(Event{
		Type: EventTypeRuleUpdated,
		Data: RuleUpdatedEvent{Avatar: "seraphina.png", Op: "set"},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, "rule_updated", ev["type"])
	data := ev["data"].(map[string]interface{})
	assert.Equal(t, "seraphina.png", data["avatar"])
	assert.Equal(t, "set", data["op"])
}

func TestDisabledEventTypesAreDropped(t *testing.T) {
	hub, url := startHub(t, HubConfig{BroadcastPatternErrors: true})
	conn := dial(t, hub, url, nil)

	hub.BroadcastEvent(Event{Type: EventTypeCharacterChanged, Data: CharacterChangedEvent{Avatar: "a.png", Active: true}})
	hub.BroadcastEvent(Event{Type: EventTypePatternError, Data: PatternErrorEvent{Pattern: "(", Flags: "g", Error: "boom"}})

	ev := readEvent(t, conn)
	assert.Equal(t, "pattern_error", ev["type"])
}

func TestSubscriptionFiltersEvents(t *testing.T) {
	hub, url := startHub(t, HubConfig{
		BroadcastCharacterChanges: true,
		BroadcastRuleUpdates:      true,
	})
	conn := dial(t, hub, url, nil)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Events: []EventType{EventTypeCharacterChanged}}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	// the pong proves the subscription was processed first
	assert.Equal(t, "pong", readEvent(t, conn)["type"])

	hub.BroadcastEvent(Event{Type: EventTypeRuleUpdated, Data: RuleUpdatedEvent{Avatar: "a.png"}})
	hub.BroadcastEvent(Event{Type: EventTypeCharacterChanged, Data: CharacterChangedEvent{Avatar: "b.png", Active: true}})

	ev := readEvent(t, conn)
	assert.Equal(t, "character_changed", ev["type"])
}

func TestBasicAuth(t *testing.T) {
	hub, url := startHub(t, HubConfig{Username: "admin", Password: "secret"})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	dial(t, hub, url, req.Header)
	assert.EqualValues(t, 1, hub.GetStats().ActiveConnections)
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(HubConfig{AllowedOrigins: []string{"http://localhost:8000"}}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:8000")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, hub.checkOrigin(req))
}
