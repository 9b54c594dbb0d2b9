package homeassistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

func fakeWebsocket(t *testing.T, token string, events []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/websocket", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(hass.Message{Type: hass.MessageAuthRequired, HAVersion: "2026.1"})
		var auth hass.AuthMessage
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth.AccessToken != token {
			_ = conn.WriteJSON(hass.Message{Type: hass.MessageAuthInvalid, Message: "bad token"})
			return
		}
		_ = conn.WriteJSON(hass.Message{Type: hass.MessageAuthOK})

		var sub hass.SubscribeEventsMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, hass.EventStateChanged, sub.EventType)
		ok := true
		_ = conn.WriteJSON(hass.Message{ID: sub.ID, Type: hass.MessageResult, Success: &ok})

		for _, ev := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ev)); err != nil {
				return
			}
		}
		// Hold the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://ha:8123/api/websocket", WebsocketURL("http://ha:8123/"))
	assert.Equal(t, "wss://ha.example/api/websocket", WebsocketURL("https://ha.example"))
}

func TestEventStreamDeliversMediaPlayerChanges(t *testing.T) {
	events := []string{
		`{"id":1,"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"light.desk","new_state":{"entity_id":"light.desk","state":"on"}}}}`,
		`{"id":1,"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"media_player.kitchen","new_state":{"entity_id":"media_player.kitchen","state":"paused","attributes":{"friendly_name":"Kitchen"}}}}}`,
	}
	srv := fakeWebsocket(t, "secret", events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan hass.StateChangedData, 2)
	done := make(chan error, 1)
	stream := NewEventStream(srv.URL, "secret", time.Second)
	go func() {
		done <- stream.Run(ctx, func(data hass.StateChangedData) { got <- data })
	}()

	select {
	case data := <-got:
		assert.Equal(t, "media_player.kitchen", data.EntityID)
		require.NotNil(t, data.NewState)
		assert.Equal(t, "paused", data.NewState.State)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("stream did not stop")
	}
}

func TestEventStreamRejectsBadToken(t *testing.T) {
	srv := fakeWebsocket(t, "secret", nil)
	err := NewEventStream(srv.URL, "wrong", time.Second).Run(context.Background(), func(hass.StateChangedData) {})
	assert.ErrorIs(t, err, ErrAuthInvalid)
}
