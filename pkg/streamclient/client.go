// Package streamclient consumes one channel of the realtime stream API and
// keeps it alive through transient failures. Callers register callbacks and
// call Connect once; reconnects with bounded exponential backoff happen
// internally until the configured attempt limit is reached.
package streamclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// State is the client's connection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateDisconnected is terminal until the application calls Connect
	// again: the attempt limit was reached or Disconnect was called.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one decoded stream event.
type Event struct {
	Type      string
	Timestamp time.Time
	// Data holds the full decoded payload, including type and timestamp.
	Data map[string]any
	Raw  []byte
}

// Config tunes the client. Zero values get sensible defaults.
type Config struct {
	// MaxReconnectAttempts bounds consecutive failed retries before the
	// client goes terminal. Default 5.
	MaxReconnectAttempts int
	// ReconnectDelay is the base backoff delay; attempt N waits
	// ReconnectDelay × 2^(N−1). Default 1s.
	ReconnectDelay time.Duration
	// Token, when set, is sent as a bearer token (staff channels).
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger

	OnConnect    func()
	OnMessage    func(Event)
	OnError      func(error)
	OnDisconnect func()
}

// Client maintains a best-effort continuous read of one stream URL.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	state    State
	url      string
	attempts int
	boff     *backoff.ExponentialBackOff
	cancel   context.CancelFunc
	retry    *time.Timer
}

var errServerClosed = errors.New("stream closed by server")

// New builds a Client. Connect starts it.
func New(cfg Config) *Client {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return &Client{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "streamclient").Logger(),
		state: StateIdle,
		boff:  b,
	}
}

// Connect opens the stream at url, tearing down any existing one first.
// Safe to call from any state.
func (c *Client) Connect(url string) {
	c.mu.Lock()
	c.teardownLocked()
	c.url = url
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(ctx, url)
}

// Disconnect cancels any pending reconnect, closes the stream, resets the
// attempt counter, and fires OnDisconnect. Safe from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.attempts = 0
	c.boff.Reset()
	c.state = StateDisconnected
	c.mu.Unlock()
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect()
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current consecutive-failure count.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// teardownLocked stops the retry timer and the active stream without firing
// callbacks. Caller holds c.mu.
func (c *Client) teardownLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) run(ctx context.Context, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.handleFailure(ctx, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.handleFailure(ctx, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		c.handleFailure(ctx, fmt.Errorf("stream: unexpected status %d", resp.StatusCode))
		return
	}

	c.mu.Lock()
	c.state = StateConnected
	c.attempts = 0
	c.boff.Reset()
	c.mu.Unlock()
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		// blank lines and comment frames (open ack, heartbeats) are noise
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		ev, err := parseEvent([]byte(strings.TrimSpace(data)))
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(ev)
		}
	}
	if ctx.Err() != nil {
		// deliberate teardown via Disconnect or a fresh Connect
		return
	}
	err = sc.Err()
	if err == nil {
		err = errServerClosed
	}
	c.handleFailure(ctx, err)
}

// handleFailure drives the retry state machine: fire OnError, then either
// schedule the next attempt after ReconnectDelay × 2^(attempts−1) or go
// terminal and fire OnDisconnect.
func (c *Client) handleFailure(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateDisconnected
		c.teardownLocked()
		c.mu.Unlock()
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
		c.log.Warn().Err(err).Msg("reconnect attempts exhausted")
		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect()
		}
		return
	}
	c.attempts++
	delay := c.boff.NextBackOff()
	c.state = StateReconnecting
	url := c.url
	attempt := c.attempts
	c.retry = time.AfterFunc(delay, func() { c.Connect(url) })
	c.mu.Unlock()

	c.log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("scheduling reconnect")
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

func parseEvent(raw []byte) (Event, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Event{}, err
	}
	ev := Event{Data: data, Raw: append([]byte(nil), raw...)}
	if t, ok := data["type"].(string); ok {
		ev.Type = t
	}
	if ts, ok := data["timestamp"].(string); ok {
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return ev, nil
}
