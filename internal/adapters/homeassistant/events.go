package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

// ErrAuthInvalid is returned when the server rejects the token.
var ErrAuthInvalid = errors.New("home assistant rejected access token")

// StateHandler receives state_changed payloads.
type StateHandler func(hass.StateChangedData)

// EventStream subscribes to state_changed events over the websocket API.
type EventStream struct {
	url     string
	token   string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// Events returns an event stream for the client's server.
func (c *Client) Events() *EventStream {
	return NewEventStream(c.baseURL, c.token, c.Timeout())
}

// NewEventStream builds a stream for baseURL.
func NewEventStream(baseURL, token string, timeout time.Duration) *EventStream {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventStream{
		url:     WebsocketURL(baseURL),
		token:   token,
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
	}
}

// WebsocketURL maps the REST base URL to the websocket endpoint.
func WebsocketURL(baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/websocket"
}

// Run connects, authenticates, subscribes and delivers media_player state
// changes to handler until ctx is done or the connection fails.
func (s *EventStream) Run(ctx context.Context, handler StateHandler) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.url, http.Header{})
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.url, err)
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := s.handshake(conn); err != nil {
		return err
	}

	for {
		var msg hass.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if msg.Type != hass.MessageEvent || msg.Event == nil || msg.Event.EventType != hass.EventStateChanged {
			continue
		}
		var data hass.StateChangedData
		if err := json.Unmarshal(msg.Event.Data, &data); err != nil {
			continue
		}
		if !strings.HasPrefix(data.EntityID, hass.DomainMediaPlayer+".") {
			continue
		}
		handler(data)
	}
}

func (s *EventStream) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	defer conn.SetReadDeadline(time.Time{})

	var msg hass.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != hass.MessageAuthRequired {
		return fmt.Errorf("unexpected message %q", msg.Type)
	}
	if err := conn.WriteJSON(hass.AuthMessage{Type: hass.MessageAuth, AccessToken: s.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case hass.MessageAuthOK:
	case hass.MessageAuthInvalid:
		return ErrAuthInvalid
	default:
		return fmt.Errorf("unexpected message %q", msg.Type)
	}

	sub := hass.SubscribeEventsMessage{ID: 1, Type: hass.MessageSubscribeEvents, EventType: hass.EventStateChanged}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	msg = hass.Message{}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read subscribe result: %w", err)
	}
	if msg.Type != hass.MessageResult || msg.Success == nil || !*msg.Success {
		reason := "subscription rejected"
		if msg.Error != nil {
			reason = msg.Error.Message
		}
		return fmt.Errorf("subscribe: %s", reason)
	}
	return nil
}
