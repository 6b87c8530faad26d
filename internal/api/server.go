// Package api implements the HTTP surface of the realtime service: the
// long-lived stream endpoints, the publish endpoints used by the CRUD
// product, and the push-device registry.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dinestream/internal/auth"
	"dinestream/internal/config"
	"dinestream/internal/events"
	"dinestream/internal/metrics"
	"dinestream/internal/store"
	"dinestream/internal/stream"
)

type Server struct {
	cfg      config.Config
	log      zerolog.Logger
	registry *stream.Registry
	pub      *events.Publisher
	store    store.Store
	auth     *auth.Verifier
}

func NewServer(cfg config.Config, log zerolog.Logger, registry *stream.Registry, pub *events.Publisher, st store.Store, verifier *auth.Verifier) *Server {
	return &Server{
		cfg:      cfg,
		log:      log.With().Str("component", "api").Logger(),
		registry: registry,
		pub:      pub,
		store:    st,
		auth:     verifier,
	}
}

// Routes builds the chi router for the whole service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Get("/debug/info", s.handleDebugInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Get("/stream/session/{sessionID}", s.handleSessionStream)
	r.Get("/stream/restaurant/{restaurantID}/staff", s.handleStaffStream)
	r.Get("/stream/restaurant/{restaurantID}/staff/ws", s.handleStaffWS)

	r.Route("/v1/restaurants/{restaurantID}", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/orders", s.handlePublishOrder)
			r.Post("/order-status", s.handlePublishOrderStatus)
			r.Post("/table-status", s.handlePublishTableStatus)
			r.Post("/chat", s.handlePublishChat)
			r.Post("/chat-read", s.handlePublishChatRead)
			r.Post("/session-end", s.handlePublishSessionEnd)
			r.Post("/payment", s.handlePublishPayment)
		})
		r.Route("/devices", func(r chi.Router) {
			r.Post("/", s.handleRegisterDevice)
			r.Get("/", s.handleListDevices)
			r.Delete("/{deviceID}", s.handleDeleteDevice)
		})
	})

	return r
}

func (s *Server) heartbeatInterval() time.Duration {
	if s.cfg.HeartbeatInterval > 0 {
		return s.cfg.HeartbeatInterval
	}
	return 30 * time.Second
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
