package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"dinestream/internal/events"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsClient adapts a WebSocket connection to stream.Client.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// handleStaffWS serves the staff channel over WebSocket for clients that
// cannot hold an SSE response open. Auth happens before the upgrade so
// failures still get proper status codes.
func (s *Server) handleStaffWS(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	if restaurantID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing restaurantID", "", r.URL.Path)
		return
	}
	if _, err := s.authorizeStaff(r, restaurantID); err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	channel := events.StaffChannel(restaurantID)
	c := &wsClient{conn: conn}
	s.registry.AddClient(r.Context(), channel, c)
	defer s.registry.RemoveClient(context.Background(), channel, c)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.heartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	// consumers do not send application messages; the read loop exists to
	// observe the close signal
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
