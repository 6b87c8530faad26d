package events

import "strings"

// ChatPolicy decides, per order status, whether a status change also posts a
// customer-facing chat message to the session channel. Statuses absent from
// the map fall back to the product default: every status except SERVED gets
// a message.
type ChatPolicy map[string]bool

// Notifies reports whether status should produce a chat message.
func (p ChatPolicy) Notifies(status string) bool {
	s := strings.ToUpper(strings.TrimSpace(status))
	if v, ok := p[s]; ok {
		return v
	}
	return s != "SERVED"
}

// statusText renders the customer-facing chat line for a status change.
func statusText(status string) string {
	switch strings.ToUpper(status) {
	case "CONFIRMED":
		return "Your order has been confirmed."
	case "PREPARING":
		return "Your order is being prepared."
	case "READY":
		return "Your order is ready."
	case "CANCELLED":
		return "Your order has been cancelled."
	default:
		return "Your order status is now " + strings.ToLower(status) + "."
	}
}
