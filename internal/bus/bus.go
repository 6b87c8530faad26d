// Package bus abstracts the process-external pub/sub broker that keeps
// multiple API instances consistent. Channels are opaque strings; messages
// are raw JSON payloads.
package bus

import "context"

// Handler receives the raw payload of one published message.
type Handler func(payload []byte)

// Bus is the transport used for cross-process event fan-out.
type Bus interface {
	// Publish sends payload to every process subscribed to channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers h for channel. At most one handler per channel
	// is active; a second Subscribe for the same channel is a no-op.
	Subscribe(ctx context.Context, channel string, h Handler) error
	// Unsubscribe tears down the channel subscription. Unknown channels
	// are a no-op.
	Unsubscribe(ctx context.Context, channel string) error
	Close() error
}
