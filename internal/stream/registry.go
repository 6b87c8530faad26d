// Package stream owns the per-process mapping from channel name to locally
// connected output streams. It subscribes the transport bus on a channel's
// first local client and unsubscribes when the last one leaves, and fans
// inbound bus messages out to every attached stream.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dinestream/internal/bus"
	"dinestream/internal/events"
	"dinestream/internal/metrics"
)

// Client is one locally attached output stream. Implementations must be
// safe for Send calls from multiple goroutines. Clients are tracked by
// identity, so the same value must be passed to AddClient and RemoveClient.
type Client interface {
	// Send writes one serialized event frame to the underlying stream.
	Send(data []byte) error
}

type channelState struct {
	clients map[Client]struct{}
	// subscribed records whether the bus subscription actually succeeded.
	// When it did not, the next AddClient retries instead of assuming the
	// channel is live.
	subscribed bool
}

// Registry holds the channel -> local client map for one process.
type Registry struct {
	bus bus.Bus
	log zerolog.Logger

	mu       sync.Mutex
	channels map[string]*channelState
}

func NewRegistry(b bus.Bus, log zerolog.Logger) *Registry {
	return &Registry{
		bus:      b,
		log:      log.With().Str("component", "registry").Logger(),
		channels: make(map[string]*channelState),
	}
}

// AddClient registers c under channel, establishing the bus subscription if
// c is the channel's first local client. Before returning it writes the
// initial connected control event to c; if even that write fails the client
// is dropped on the spot.
func (r *Registry) AddClient(ctx context.Context, channel string, c Client) {
	r.mu.Lock()
	st := r.channels[channel]
	if st == nil {
		st = &channelState{clients: make(map[Client]struct{})}
		r.channels[channel] = st
	}
	if !st.subscribed {
		if err := r.bus.Subscribe(ctx, channel, func(payload []byte) { r.dispatch(channel, payload) }); err != nil {
			metrics.BusErrors.WithLabelValues("subscribe").Inc()
			r.log.Error().Err(err).Str("channel", channel).Msg("bus subscribe failed; channel will not receive events")
		} else {
			st.subscribed = true
		}
	}
	st.clients[c] = struct{}{}
	r.mu.Unlock()
	metrics.StreamClients.WithLabelValues(events.ChannelKind(channel)).Inc()

	hello := events.Connected{Envelope: events.Envelope{Type: events.TypeConnected, Timestamp: time.Now().UTC()}}
	raw, _ := json.Marshal(hello)
	if err := c.Send(raw); err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("initial write failed, dropping client")
		r.RemoveClient(ctx, channel, c)
	}
}

// RemoveClient detaches c from channel and tears down the bus subscription
// if c was the last local client. Removing an unknown client is a no-op.
func (r *Registry) RemoveClient(ctx context.Context, channel string, c Client) {
	r.mu.Lock()
	st := r.channels[channel]
	if st == nil {
		r.mu.Unlock()
		return
	}
	if _, ok := st.clients[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(st.clients, c)
	if len(st.clients) == 0 {
		delete(r.channels, channel)
		// Unsubscribe under the lock so a concurrent first-client arrival
		// cannot resubscribe before this teardown lands.
		if st.subscribed {
			if err := r.bus.Unsubscribe(ctx, channel); err != nil {
				metrics.BusErrors.WithLabelValues("unsubscribe").Inc()
				r.log.Error().Err(err).Str("channel", channel).Msg("bus unsubscribe failed")
			}
		}
	}
	r.mu.Unlock()

	metrics.StreamClients.WithLabelValues(events.ChannelKind(channel)).Dec()
}

// ClientCount returns the number of locally attached clients for channel;
// zero for unknown channels.
func (r *Registry) ClientCount(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.channels[channel]; st != nil {
		return len(st.clients)
	}
	return 0
}

// Close tears down every active bus subscription. Attached clients are left
// to their connections' own close signals.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch, st := range r.channels {
		if st.subscribed {
			if err := r.bus.Unsubscribe(ctx, ch); err != nil {
				r.log.Warn().Err(err).Str("channel", ch).Msg("bus unsubscribe failed")
			}
		}
	}
	r.channels = make(map[string]*channelState)
}

// dispatch is the bus handler for one channel: parse, then fan out.
func (r *Registry) dispatch(channel string, payload []byte) {
	ev, err := events.Decode(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed bus message")
		return
	}
	r.broadcast(channel, ev)
}

// broadcast writes ev to every client currently attached to channel. A
// failing client is removed and logged; delivery to the rest continues.
func (r *Registry) broadcast(channel string, ev events.Event) {
	r.mu.Lock()
	st := r.channels[channel]
	if st == nil {
		r.mu.Unlock()
		return
	}
	clients := make([]Client, 0, len(st.clients))
	for c := range st.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	kind := events.ChannelKind(channel)
	for _, c := range clients {
		if err := c.Send(ev.Raw); err != nil {
			metrics.StreamClientsDropped.WithLabelValues(kind).Inc()
			r.log.Warn().Err(err).Str("channel", channel).Str("type", string(ev.Type)).Msg("write failed, removing client")
			r.RemoveClient(context.Background(), channel, c)
			continue
		}
		metrics.EventsDelivered.WithLabelValues(kind).Inc()
	}
}
