package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the realtime service
	Registry = prometheus.NewRegistry()
	// StreamClients tracks currently attached stream clients by channel kind
	StreamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "stream_clients", Help: "Currently connected stream clients."},
		[]string{"channel_kind"},
	)
	// StreamClientsDropped counts clients pruned after a failed write
	StreamClientsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_clients_dropped_total", Help: "Stream clients removed after a write failure."},
		[]string{"channel_kind"},
	)
	// EventsPublished counts events handed to the transport bus by type
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "events_published_total", Help: "Events published to the transport bus."},
		[]string{"type"},
	)
	// EventsDelivered counts event frames written to local streams
	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_events_delivered_total", Help: "Event frames delivered to local stream clients."},
		[]string{"channel_kind"},
	)
	// BusErrors counts transport bus failures by operation
	BusErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bus_errors_total", Help: "Transport bus errors by operation."},
		[]string{"op"},
	)
	// PushDeliveries counts push notification attempts by outcome
	PushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "push_deliveries_total", Help: "Push notification deliveries by outcome."},
		[]string{"status"},
	)
)

// RegisterDefault registers all collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(StreamClients)
		Registry.MustRegister(StreamClientsDropped)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(EventsDelivered)
		Registry.MustRegister(BusErrors)
		Registry.MustRegister(PushDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
