// Package gateway wraps the stats backend's pull endpoint, mutation calls,
// and push channel behind plain request/response methods and an event stream.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"deckhand"
	"deckhand/internal/entities/container"

	"github.com/blang/semver"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
	defaultMaxRetries  = 10
)

// Config holds the connection settings for one backend.
type Config struct {
	// BaseURL is the http(s) base for pull and mutation calls.
	BaseURL string
	// PushURL is the websocket endpoint for push updates. Derived from
	// BaseURL when empty.
	PushURL string
	// Timeout bounds each pull and mutation request.
	Timeout time.Duration
	// MaxReconnects bounds push channel reconnection attempts before the
	// channel is considered failed.
	MaxReconnects int
	// BackoffBase and BackoffMax shape the reconnect delay.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Logger *slog.Logger
}

// MutationKind identifies one of the six overlay mutations.
type MutationKind uint8

const (
	SetContainerName MutationKind = iota
	ClearContainerName
	SetGroupName
	ClearGroupName
	SetContainerGroup
	ClearContainerGroup
)

// Mutation is one idempotent remote overlay change. Id is the container id,
// or the group id for group renames. Name carries the new display name, or
// the target group for SetContainerGroup.
type Mutation struct {
	Kind MutationKind
	Id   string
	Name string
}

// ConnState describes the push channel's connectivity.
type ConnState uint8

const (
	StateConnected ConnState = iota
	StateReconnecting
	// StateDisconnected is terminal: the retry budget is exhausted and
	// manual recovery is required.
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// EventKind discriminates entries on the gateway event stream.
type EventKind uint8

const (
	// EventSnapshot carries a push payload.
	EventSnapshot EventKind = iota
	// EventConnState carries a connectivity-state change, distinct from
	// data events so consumers can surface degradation.
	EventConnState
)

// Event is one entry on the gateway's update stream.
type Event struct {
	Kind     EventKind
	Snapshot *container.PushPayload
	State    ConnState
}

// Client talks to one stats backend. Pull reads fail silently: they log and
// return the previous known-good value so a failed cycle never corrupts the
// view. Mutations report success as a bool, never as an error value.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
	log  *slog.Logger

	events  chan Event
	dropped chan struct{}

	mu           sync.Mutex
	lastEntities []container.Entity
	lastOverlay  container.Overlay
	conn         wsConn
	lastState    ConnState
	stateKnown   bool
}

// NewClient validates the config and prepares a gateway client. The push
// channel is not opened until StartPush is called.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:         cfg,
		base:        base,
		http:        &http.Client{Timeout: cfg.Timeout},
		log:         log,
		events:      make(chan Event, 16),
		dropped:     make(chan struct{}, 1),
		lastOverlay: container.NewOverlay(),
	}, nil
}

// Events returns the stream of push snapshots and connectivity changes.
func (c *Client) Events() <-chan Event {
	return c.events
}

// PullEntities fetches the full entity list. On any failure it logs and
// returns the previous known-good list with ok=false.
func (c *Client) PullEntities(ctx context.Context) ([]container.Entity, bool) {
	var entities []container.Entity
	if err := c.getJSON(ctx, "/containers", &entities); err != nil {
		c.log.Warn("Entity pull failed", "err", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastEntities, false
	}
	c.mu.Lock()
	c.lastEntities = entities
	c.mu.Unlock()
	return entities, true
}

// PullOverlay fetches the naming overlay. Same failure contract as
// PullEntities.
func (c *Client) PullOverlay(ctx context.Context) (container.Overlay, bool) {
	var overlay container.Overlay
	if err := c.getJSON(ctx, "/custom-names", &overlay); err != nil {
		c.log.Warn("Overlay pull failed", "err", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastOverlay.Clone(), false
	}
	overlay = overlay.Clone() // normalizes nil maps
	c.mu.Lock()
	c.lastOverlay = overlay
	c.mu.Unlock()
	return overlay, true
}

// Mutate issues one remote overlay change and reports whether the backend
// accepted it. Failures are logged, never returned, so callers can always
// roll back deterministically.
func (c *Client) Mutate(ctx context.Context, m Mutation) bool {
	method, path, body := m.request()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			c.log.Error("Mutation encode failed", "err", err)
			return false
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		c.log.Error("Mutation request failed", "err", err)
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Mutation call failed", "kind", m.Kind, "id", m.Id, "err", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		c.log.Warn("Mutation rejected", "kind", m.Kind, "id", m.Id, "status", resp.Status)
		return false
	}
	return true
}

// request maps a mutation to its method, path, and JSON body.
func (m Mutation) request() (method, path string, body any) {
	type nameBody struct {
		Name string `json:"name"`
	}
	type groupBody struct {
		ContainerId string `json:"containerId"`
		GroupName   string `json:"groupName"`
	}
	switch m.Kind {
	case SetContainerName:
		return http.MethodPost, "/custom-names/container/" + url.PathEscape(m.Id), nameBody{m.Name}
	case ClearContainerName:
		return http.MethodDelete, "/custom-names/container/" + url.PathEscape(m.Id), nil
	case SetGroupName:
		return http.MethodPost, "/custom-names/group/" + url.PathEscape(m.Id), nameBody{m.Name}
	case ClearGroupName:
		return http.MethodDelete, "/custom-names/group/" + url.PathEscape(m.Id), nil
	case SetContainerGroup:
		return http.MethodPost, "/container-group", groupBody{m.Id, m.Name}
	default: // ClearContainerGroup
		return http.MethodDelete, "/container-group/" + url.PathEscape(m.Id), nil
	}
}

// CheckBackend probes the health endpoint. When the backend reports a
// version older than the minimum supported one, a warning is logged but the
// gateway keeps working.
func (c *Client) CheckBackend(ctx context.Context) error {
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return err
	}
	if health.Version != "" {
		if v, err := semver.Parse(health.Version); err == nil && v.LT(deckhand.MinVersionBackend) {
			c.log.Warn("Backend is outdated, reconnect refresh may not work",
				"version", health.Version, "min", deckhand.MinVersionBackend)
		}
	}
	return nil
}

// getJSON performs one GET and decodes the response body. A non-2xx status
// or malformed body is an error; the caller keeps its prior state.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath(path).String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: malformed payload: %w", path, err)
	}
	return nil
}

// emitState publishes a connectivity change, deduplicating repeats.
func (c *Client) emitState(ctx context.Context, state ConnState) {
	c.mu.Lock()
	if c.stateKnown && c.lastState == state {
		c.mu.Unlock()
		return
	}
	c.lastState = state
	c.stateKnown = true
	c.mu.Unlock()
	c.emit(ctx, Event{Kind: EventConnState, State: state})
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
