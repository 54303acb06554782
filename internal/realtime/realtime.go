// Package realtime implements the push-channel transport: one long-lived
// WebSocket subscription per signed-in user, delivering notification change
// events. Reconnect policy lives in the channel manager above it; this
// package only dials, reads, and pings.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/workloop/notify-go/internal/types"
)

// Envelope is the wire format for all push events.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wire event types.
const (
	TypeSubscribed          = "subscribed"
	TypeNotificationChanged = "notification.changed"
)

// Conn is one open subscription. Implementations must be safe for one
// concurrent reader plus one concurrent pinger.
type Conn interface {
	// ReadEvent blocks until the next notification change arrives or the
	// connection fails.
	ReadEvent(ctx context.Context) (types.ChangeEvent, error)
	// Ping sends a liveness probe and waits for the peer's acknowledgement.
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a subscription scoped to one recipient.
type Dialer interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}

// WSDialer dials the platform's WebSocket endpoint.
type WSDialer struct {
	BaseURL string
	Token   string

	// SessionID distinguishes concurrent tabs of the same user on the
	// server side. Optional.
	SessionID string

	// HandshakeTimeout bounds dial plus subscription acknowledgement.
	HandshakeTimeout time.Duration
}

// Dial opens the socket and waits for the server's subscription
// acknowledgement before returning.
func (d *WSDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wsURL := strings.Replace(d.BaseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/v1/notifications/subscribe?recipient=" + userID + "&token=" + d.Token
	if d.SessionID != "" {
		wsURL += "&session=" + d.SessionID
	}

	ws, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	// The server confirms the recipient-scoped subscription before any
	// change events flow.
	_, data, err := ws.Read(dialCtx)
	if err != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("read subscribe ack: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != TypeSubscribed {
		_ = ws.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("expected %q ack, got %q", TypeSubscribed, env.Type)
	}

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadEvent(ctx context.Context) (types.ChangeEvent, error) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return types.ChangeEvent{}, err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue // skip malformed frames
		}
		if env.Type != TypeNotificationChanged {
			continue
		}
		var event types.ChangeEvent
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			continue
		}
		return event, nil
	}
}

func (c *wsConn) Ping(ctx context.Context) error {
	return c.ws.Ping(ctx)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "client disconnect")
}
