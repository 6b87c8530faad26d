// Package events defines the typed domain events of the realtime subsystem
// and the Publisher that hands them to the transport bus.
//
// Two channel families exist: one per dining session and one per
// restaurant's staff devices. Events are ephemeral notifications; they are
// serialized to JSON, fanned out, and discarded.
package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Type identifies one kind of event. The set is closed.
type Type string

const (
	// TypeConnected is the control event written to a freshly attached
	// stream so consumers can tell "stream open" from the first real event.
	TypeConnected Type = "connected"

	TypeOrderNew           Type = "order:new"
	TypeOrderStatusChanged Type = "order:status-changed"
	TypeTableStatusChanged Type = "table:status-changed"
	TypeChatNew            Type = "chat:new"
	TypeChatMessage        Type = "chat:message"
	TypeChatRead           Type = "chat:read"
	TypeSessionEnded       Type = "session:ended"
	TypePaymentConfirmed   Type = "payment:confirmed"
)

// SessionChannel names the broadcast scope of one physical dining session.
func SessionChannel(sessionID string) string { return "session:" + sessionID }

// StaffChannel names the broadcast scope of all staff devices of one tenant.
func StaffChannel(restaurantID string) string { return "restaurant:" + restaurantID + ":staff" }

// ChannelKind classifies a channel name for metrics labels.
func ChannelKind(channel string) string {
	switch {
	case strings.HasPrefix(channel, "session:"):
		return "session"
	case strings.HasPrefix(channel, "restaurant:"):
		return "staff"
	default:
		return "other"
	}
}

// Envelope carries the fields every event shares. The publisher stamps the
// timestamp; callers never supply it.
type Envelope struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Connected is the control event a stream receives upon attach. It carries
// nothing beyond the envelope.
type Connected struct {
	Envelope
}

// OrderItem is the human-relevant slice of an order line.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price,omitempty"`
}

type OrderNew struct {
	Envelope
	OrderID     string      `json:"orderId"`
	TableID     string      `json:"tableId"`
	TableNumber int         `json:"tableNumber"`
	Items       []OrderItem `json:"items"`
	TotalAmount int64       `json:"totalAmount"`
}

type OrderStatusChanged struct {
	Envelope
	OrderID     string      `json:"orderId"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items,omitempty"`
	TableNumber int         `json:"tableNumber,omitempty"`
}

type TableStatusChanged struct {
	Envelope
	TableID   string `json:"tableId"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

type ChatNew struct {
	Envelope
	SessionID   string `json:"sessionId"`
	TableID     string `json:"tableId"`
	TableNumber int    `json:"tableNumber"`
	Message     string `json:"message"`
	Sender      string `json:"sender"`
	MessageType string `json:"messageType,omitempty"`
}

type ChatMessage struct {
	Envelope
	Sender      string `json:"sender"`
	Text        string `json:"text"`
	MessageType string `json:"messageType"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type ChatRead struct {
	Envelope
	SessionID         string `json:"sessionId"`
	UserID            string `json:"userId"`
	LastReadMessageID string `json:"lastReadMessageId"`
}

type SessionEnded struct {
	Envelope
	SessionID string `json:"sessionId"`
}

type PaymentConfirmed struct {
	Envelope
	SessionID     string `json:"sessionId"`
	TableID       string `json:"tableId"`
	TableNumber   int    `json:"tableNumber"`
	TotalAmount   int64  `json:"totalAmount"`
	PaymentMethod string `json:"paymentMethod"`
}

// Event is a decoded wire message as seen by the fan-out path. Raw holds the
// full payload exactly as published; Type is extracted for routing and
// metrics only.
type Event struct {
	Type Type
	Raw  []byte
}

var errMissingType = errors.New("event has no type")

// Decode validates a raw bus payload and extracts its type.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, err
	}
	if env.Type == "" {
		return Event{}, errMissingType
	}
	return Event{Type: env.Type, Raw: raw}, nil
}
