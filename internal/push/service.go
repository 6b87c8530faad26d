// Package push delivers best-effort notifications to a restaurant's
// registered staff devices over HTTP. Deliveries are fire-and-forget from
// the publisher's point of view: failures are logged and reported back, but
// never block or fail the primary event publish.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dinestream/internal/events"
	"dinestream/internal/metrics"
	"dinestream/internal/store"
)

// Config tunes delivery behavior.
type Config struct {
	Timeout time.Duration `envconfig:"PUSH_TIMEOUT" default:"5s"`
	// RatePerSec caps outbound deliveries so a burst of orders cannot
	// hammer the device gateways.
	RatePerSec float64 `envconfig:"PUSH_RATE_PER_SEC" default:"20"`
	Burst      int     `envconfig:"PUSH_BURST" default:"40"`
}

// Service implements events.Notifier against the device store.
type Service struct {
	store   store.Store
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewService(s store.Store, cfg Config, log zerolog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	return &Service{
		store:   s,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		log:     log.With().Str("component", "push").Logger(),
	}
}

// Notify posts n to every device registered for restaurantID. Per-device
// failures are logged and joined into the returned error; a partial success
// is normal.
func (s *Service) Notify(ctx context.Context, restaurantID string, n events.Notification) error {
	devices, err := s.store.ListDevices(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	var errs []error
	for _, d := range devices {
		if err := s.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.deliver(ctx, d, body); err != nil {
			metrics.PushDeliveries.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("deviceId", d.ID).Str("restaurantId", restaurantID).Msg("push delivery failed")
			errs = append(errs, err)
			continue
		}
		metrics.PushDeliveries.WithLabelValues("ok").Inc()
	}
	return errors.Join(errs...)
}

func (s *Service) deliver(ctx context.Context, d store.Device, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(d.Secret, body))
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("device %s: status %d", d.ID, resp.StatusCode)
	}
	return nil
}
