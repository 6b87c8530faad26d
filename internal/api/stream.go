package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"dinestream/internal/auth"
	"dinestream/internal/events"
)

// sseClient adapts one committed event-stream response to stream.Client.
// The registry's broadcast goroutines and the handler's heartbeat loop both
// write through it, so every write is serialized by the mutex.
type sseClient struct {
	mu    sync.Mutex
	w     io.Writer
	flush http.Flusher
}

func newSSEClient(w io.Writer, flush http.Flusher) *sseClient {
	return &sseClient{w: w, flush: flush}
}

func (c *sseClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", data); err != nil {
		return err
	}
	c.flush.Flush()
	return nil
}

// SendComment writes a comment-only keepalive frame.
func (c *sseClient) SendComment(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, ": %s\n\n", text); err != nil {
		return err
	}
	c.flush.Flush()
	return nil
}

// handleSessionStream serves GET /stream/session/{sessionID}. Session
// streams are unauthenticated; the unguessable session id is the scope.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing sessionID", "", r.URL.Path)
		return
	}
	s.serveStream(w, r, events.SessionChannel(sessionID))
}

// handleStaffStream serves GET /stream/restaurant/{restaurantID}/staff.
// Requires a bearer token for the restaurant, from the Authorization header
// or the token query parameter (EventSource cannot set custom headers).
func (s *Server) handleStaffStream(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	if restaurantID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing restaurantID", "", r.URL.Path)
		return
	}
	if _, err := s.authorizeStaff(r, restaurantID); err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	s.serveStream(w, r, events.StaffChannel(restaurantID))
}

var errNoToken = errors.New("missing bearer token")

// authorizeStaff extracts and verifies the staff token, and checks it is
// scoped to restaurantID.
func (s *Server) authorizeStaff(r *http.Request, restaurantID string) (auth.Principal, error) {
	token := ""
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		token = strings.TrimSpace(authz[len("Bearer "):])
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return auth.Principal{}, errNoToken
	}
	pr, err := s.auth.Verify(token)
	if err != nil {
		return auth.Principal{}, err
	}
	if pr.RestaurantID != restaurantID {
		return auth.Principal{}, errors.New("token not valid for this restaurant")
	}
	return pr, nil
}

// serveStream commits the event-stream response, attaches the client to the
// registry, and pumps heartbeats until the connection goes away. The
// deferred RemoveClient runs exactly once per connection whether the client
// hung up, a proxy cut us off, or a heartbeat write failed.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := newSSEClient(w, flusher)
	// flush a comment right away so the consumer's open callback fires
	// before the first real event
	if err := c.SendComment("ok"); err != nil {
		return
	}

	s.registry.AddClient(r.Context(), channel, c)
	defer s.registry.RemoveClient(context.Background(), channel, c)

	hb := time.NewTicker(s.heartbeatInterval())
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-hb.C:
			if err := c.SendComment("heartbeat"); err != nil {
				// connection already gone; deregistration happens in the defer
				return
			}
		}
	}
}
