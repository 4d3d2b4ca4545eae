package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

// Client maintains one connection to the session hub, reconnecting with
// exponential backoff. All handler callbacks run on the read loop goroutine.
type Client struct {
	hubURL    string
	sessionID string
	senderID  string

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    *websocket.Conn

	// OnSyncResponse fires once per (re)connect with the authoritative
	// document state; the receiver must load it before doing anything else.
	OnSyncResponse func(state []byte, isFirstUser bool)
	OnChange       func(changes []byte)
	OnPresence     func(p Presence)
	OnConnection   func(connected bool)
}

// NewClient prepares a client for the given hub URL (e.g.
// ws://localhost:8080) and session id.
func NewClient(hubURL, sessionID, senderID string) *Client {
	return &Client{hubURL: hubURL, sessionID: sessionID, senderID: senderID}
}

// SenderID returns this client's id on the wire.
func (c *Client) SenderID() string { return c.senderID }

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.hubURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse hub url: %w", err)
	}
	return u.JoinPath("sessions", c.sessionID, "ws").String(), nil
}

// Run dials, handshakes and reads until the context is cancelled,
// reconnecting after failures at 1s doubling to a 30s cap. There is no
// timeout on the sync response: a silent hub leaves the client connecting.
func (c *Client) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		if err := c.connectAndRead(ctx, b); err != nil {
			slog.Error("connection lost", "err", err)
		}
		if ctx.Err() != nil {
			return
		}
		wait := b.NextBackOff()
		slog.Info("reconnecting", "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context, b *backoff.ExponentialBackOff) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	b.Reset()
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		_ = conn.Close()
		if c.OnConnection != nil {
			c.OnConnection(false)
		}
	}()

	if err := c.send(Message{Type: TypeSyncRequest, SenderID: c.senderID, SessionID: c.sessionID}); err != nil {
		return err
	}
	if c.OnConnection != nil {
		c.OnConnection(true)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeSyncResponse:
		if c.OnSyncResponse != nil {
			c.OnSyncResponse(msg.DocumentState, msg.IsFirstUser)
		}
	case TypeChange:
		if msg.SenderID == c.senderID {
			return
		}
		if c.OnChange != nil {
			c.OnChange(msg.Changes)
		}
	case TypePresence:
		if msg.SenderID == c.senderID {
			return
		}
		if msg.Presence != nil && c.OnPresence != nil {
			c.OnPresence(*msg.Presence)
		}
	default:
		slog.Info("ignoring unknown message", "type", msg.Type)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Client) send(msg Message) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write %s: %w", msg.Type, err)
	}
	return nil
}

// SendChange broadcasts a change blob. Failures while disconnected are fine:
// the editor keeps the unsent delta and sends it together with the next
// change emitted after reconnect.
func (c *Client) SendChange(changes []byte) error {
	return c.send(Message{Type: TypeChange, SenderID: c.senderID, SessionID: c.sessionID, Changes: changes})
}

// SendPresence broadcasts an ephemeral presence payload.
func (c *Client) SendPresence(p Presence) error {
	return c.send(Message{Type: TypePresence, SenderID: c.senderID, SessionID: c.sessionID, Presence: &p})
}
