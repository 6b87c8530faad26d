package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dinestream/internal/bus"
	"dinestream/internal/metrics"
)

// Notification is the payload handed to the push side channel.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers best-effort push notifications to a restaurant's
// registered staff devices. Failures are the caller's to log, never to
// propagate into the primary publish.
type Notifier interface {
	Notify(ctx context.Context, restaurantID string, n Notification) error
}

// Publisher translates domain actions into typed events on the transport
// bus. One method per event type; each stamps a server-side timestamp.
// A method that targets two channels performs two independent publishes
// with no atomicity between them.
type Publisher struct {
	bus      bus.Bus
	notifier Notifier
	policy   ChatPolicy
	log      zerolog.Logger
	now      func() time.Time
}

// NewPublisher builds a Publisher. notifier may be nil (no push side
// channel); policy may be nil (product default applies).
func NewPublisher(b bus.Bus, notifier Notifier, policy ChatPolicy, log zerolog.Logger) *Publisher {
	return &Publisher{
		bus:      b,
		notifier: notifier,
		policy:   policy,
		log:      log.With().Str("component", "publisher").Logger(),
		now:      time.Now,
	}
}

// OrderCreated publishes order:new to the restaurant's staff channel and
// pings staff devices.
func (p *Publisher) OrderCreated(ctx context.Context, restaurantID string, o OrderNew) error {
	o.Envelope = p.stamp(TypeOrderNew)
	err := p.publish(ctx, StaffChannel(restaurantID), TypeOrderNew, o)
	p.pushNotify(ctx, restaurantID, Notification{
		Title: fmt.Sprintf("New order: table %d", o.TableNumber),
		Body:  fmt.Sprintf("Order %s, %d item(s)", o.OrderID, len(o.Items)),
		Data:  map[string]string{"orderId": o.OrderID, "tableId": o.TableID},
	})
	return err
}

// OrderStatusChanged notifies both the staff channel and the originating
// session channel. When the chat policy allows it for this status, the
// session additionally receives a chat:message rendering the change.
func (p *Publisher) OrderStatusChanged(ctx context.Context, restaurantID, sessionID string, c OrderStatusChanged) error {
	c.Envelope = p.stamp(TypeOrderStatusChanged)
	errs := []error{
		p.publish(ctx, StaffChannel(restaurantID), TypeOrderStatusChanged, c),
		p.publish(ctx, SessionChannel(sessionID), TypeOrderStatusChanged, c),
	}
	if p.policy.Notifies(c.Status) {
		msg := ChatMessage{
			Envelope:    p.stamp(TypeChatMessage),
			Sender:      "system",
			Text:        statusText(c.Status),
			MessageType: "status",
		}
		errs = append(errs, p.publish(ctx, SessionChannel(sessionID), TypeChatMessage, msg))
	}
	return errors.Join(errs...)
}

// TableStatusChanged publishes table:status-changed to the staff channel.
func (p *Publisher) TableStatusChanged(ctx context.Context, restaurantID string, t TableStatusChanged) error {
	t.Envelope = p.stamp(TypeTableStatusChanged)
	return p.publish(ctx, StaffChannel(restaurantID), TypeTableStatusChanged, t)
}

// ChatMessageSent publishes chat:new to the staff channel and chat:message
// to the session channel. Messages of the "request" type (call waiter,
// request bill) additionally ping staff devices.
func (p *Publisher) ChatMessageSent(ctx context.Context, restaurantID string, c ChatNew) error {
	c.Envelope = p.stamp(TypeChatNew)
	msg := ChatMessage{
		Envelope:    p.stamp(TypeChatMessage),
		Sender:      c.Sender,
		Text:        c.Message,
		MessageType: c.MessageType,
	}
	errs := []error{
		p.publish(ctx, StaffChannel(restaurantID), TypeChatNew, c),
		p.publish(ctx, SessionChannel(c.SessionID), TypeChatMessage, msg),
	}
	if c.MessageType == "request" {
		p.pushNotify(ctx, restaurantID, Notification{
			Title: fmt.Sprintf("Request: table %d", c.TableNumber),
			Body:  c.Message,
			Data:  map[string]string{"sessionId": c.SessionID, "tableId": c.TableID},
		})
	}
	return errors.Join(errs...)
}

// ChatRead publishes a read receipt to both sides of the conversation.
func (p *Publisher) ChatRead(ctx context.Context, restaurantID string, r ChatRead) error {
	r.Envelope = p.stamp(TypeChatRead)
	return errors.Join(
		p.publish(ctx, StaffChannel(restaurantID), TypeChatRead, r),
		p.publish(ctx, SessionChannel(r.SessionID), TypeChatRead, r),
	)
}

// SessionEnded tells both channels the dining session is over.
func (p *Publisher) SessionEnded(ctx context.Context, restaurantID, sessionID string) error {
	e := SessionEnded{Envelope: p.stamp(TypeSessionEnded), SessionID: sessionID}
	return errors.Join(
		p.publish(ctx, StaffChannel(restaurantID), TypeSessionEnded, e),
		p.publish(ctx, SessionChannel(sessionID), TypeSessionEnded, e),
	)
}

// PaymentConfirmed notifies staff and the paying session.
func (p *Publisher) PaymentConfirmed(ctx context.Context, restaurantID string, pc PaymentConfirmed) error {
	pc.Envelope = p.stamp(TypePaymentConfirmed)
	return errors.Join(
		p.publish(ctx, StaffChannel(restaurantID), TypePaymentConfirmed, pc),
		p.publish(ctx, SessionChannel(pc.SessionID), TypePaymentConfirmed, pc),
	)
}

func (p *Publisher) stamp(t Type) Envelope {
	return Envelope{Type: t, Timestamp: p.now().UTC()}
}

func (p *Publisher) publish(ctx context.Context, channel string, t Type, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t, err)
	}
	if err := p.bus.Publish(ctx, channel, raw); err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		p.log.Error().Err(err).Str("channel", channel).Str("type", string(t)).Msg("bus publish failed")
		return fmt.Errorf("publish %s to %s: %w", t, channel, err)
	}
	metrics.EventsPublished.WithLabelValues(string(t)).Inc()
	return nil
}

func (p *Publisher) pushNotify(ctx context.Context, restaurantID string, n Notification) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, restaurantID, n); err != nil {
		p.log.Warn().Err(err).Str("restaurantId", restaurantID).Msg("push notification failed")
	}
}
