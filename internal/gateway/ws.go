package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"deckhand/internal/entities/container"

	"github.com/lxzan/gws"
)

const (
	// wsDeadline is reset on every inbound frame; the backend pushes at
	// least every few seconds, so 70s of silence means a dead channel.
	wsDeadline       = 70 * time.Second
	handshakeTimeout = 10 * time.Second

	eventUpdateStats  = "update_stats"
	eventRequestStats = "request_stats"
)

// pushEnvelope is the JSON frame exchanged on the push channel.
type pushEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsConn is the slice of *gws.Conn the gateway uses, split out so tests can
// substitute a fake connection.
type wsConn interface {
	WriteMessage(opcode gws.Opcode, payload []byte) error
	WriteClose(code uint16, reason []byte) error
}

// StartPush opens the push channel and keeps it alive until ctx is
// cancelled, reconnecting with capped exponential backoff. After the retry
// budget is exhausted it emits a terminal disconnected state and returns.
func (c *Client) StartPush(ctx context.Context) {
	go c.runPush(ctx)
}

func (c *Client) runPush(ctx context.Context) {
	attempts := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.setConn(conn)
			attempts = 0
			c.emitState(ctx, StateConnected)
			go conn.ReadLoop()

			select {
			case <-ctx.Done():
				c.closeConn()
				return
			case <-c.dropped:
				c.setConn(nil)
			}
		} else {
			c.log.Warn("Push channel connect failed", "err", err)
		}

		attempts++
		if attempts > c.cfg.MaxReconnects {
			c.log.Error("Push channel failed", "attempts", attempts-1)
			c.emitState(ctx, StateDisconnected)
			return
		}
		c.emitState(ctx, StateReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff(attempts)):
		}
	}
}

// backoff returns the delay before the given (1-based) reconnect attempt.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.BackoffMax {
			return c.cfg.BackoffMax
		}
	}
	return min(d, c.cfg.BackoffMax)
}

// dial opens one websocket connection to the push endpoint.
func (c *Client) dial(ctx context.Context) (*gws.Conn, error) {
	pushURL, err := c.pushURL()
	if err != nil {
		return nil, err
	}
	handler := &pushHandler{client: c, ctx: ctx}
	conn, _, err := gws.NewClient(handler, &gws.ClientOption{
		Addr:             pushURL,
		HandshakeTimeout: handshakeTimeout,
		TlsConfig:        &tls.Config{InsecureSkipVerify: true},
	})
	return conn, err
}

// pushURL returns the configured push endpoint, deriving a ws(s) URL from
// the pull base when none is set.
func (c *Client) pushURL() (string, error) {
	if c.cfg.PushURL != "" {
		return c.cfg.PushURL, nil
	}
	u, err := url.Parse(c.base.String())
	if err != nil {
		return "", err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/updates"
	return u.String(), nil
}

func (c *Client) setConn(conn wsConn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// closeConn closes the websocket connection gracefully. Safe to call when
// no connection is open.
func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteClose(1000, nil)
	}
}

// Close tears the push channel down. Pull and mutation calls stay usable.
func (c *Client) Close() {
	c.closeConn()
}

// RequestRefresh asks the backend to push its current state immediately.
// Used once after each reconnect to cover pushes missed during the outage.
func (c *Client) RequestRefresh() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	msg, _ := json.Marshal(pushEnvelope{Event: eventRequestStats})
	if err := conn.WriteMessage(gws.OpcodeText, msg); err != nil {
		c.log.Warn("Refresh request failed", "err", err)
	}
}

// pushHandler receives websocket events for one connection.
type pushHandler struct {
	gws.BuiltinEventHandler
	client *Client
	ctx    context.Context
}

func (h *pushHandler) OnOpen(conn *gws.Conn) {
	_ = conn.SetDeadline(time.Now().Add(wsDeadline))
}

func (h *pushHandler) OnClose(conn *gws.Conn, err error) {
	if err != nil {
		h.client.log.Warn("Push channel closed", "err", strings.TrimPrefix(err.Error(), "gws: "))
	}
	select {
	case h.client.dropped <- struct{}{}:
	default:
	}
}

func (h *pushHandler) OnPing(conn *gws.Conn, payload []byte) {
	_ = conn.SetDeadline(time.Now().Add(wsDeadline))
	_ = conn.WritePong(payload)
}

func (h *pushHandler) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	_ = conn.SetDeadline(time.Now().Add(wsDeadline))

	payload, err := decodePushFrame(message.Data.Bytes())
	if err != nil {
		// drop the frame, prior state is retained
		h.client.log.Warn("Ignoring malformed push frame", "err", err)
		return
	}
	if payload == nil {
		return
	}
	h.client.emit(h.ctx, Event{Kind: EventSnapshot, Snapshot: payload})
}

// decodePushFrame parses one frame. Unknown events decode to (nil, nil).
func decodePushFrame(data []byte) (*container.PushPayload, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Event != eventUpdateStats {
		return nil, nil
	}
	var payload container.PushPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", eventUpdateStats, err)
	}
	if payload.Containers == nil {
		return nil, fmt.Errorf("%s: missing containers", eventUpdateStats)
	}
	payload.CustomNames = payload.CustomNames.Clone()
	return &payload, nil
}
