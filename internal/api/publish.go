package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dinestream/internal/events"
)

// The publish endpoints are how the CRUD product hands domain actions to
// this service when it runs as a separate process. Each delegates to the
// matching Publisher method; a bus failure surfaces as 502 so the caller
// can decide whether to retry.

func (s *Server) publishAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	restaurantID := chi.URLParam(r, "restaurantID")
	if restaurantID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing restaurantID", "", r.URL.Path)
		return "", false
	}
	if _, err := s.authorizeStaff(r, restaurantID); err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return "", false
	}
	return restaurantID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return false
	}
	return true
}

func (s *Server) publishResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Publish failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

func (s *Server) handlePublishOrder(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in events.OrderNew
	if !decodeBody(w, r, &in) {
		return
	}
	if in.OrderID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing orderId", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.OrderCreated(r.Context(), restaurantID, in))
}

func (s *Server) handlePublishOrderStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in struct {
		SessionID string `json:"sessionId"`
		events.OrderStatusChanged
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.OrderID == "" || in.Status == "" || in.SessionID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing orderId, status or sessionId", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.OrderStatusChanged(r.Context(), restaurantID, in.SessionID, in.OrderStatusChanged))
}

func (s *Server) handlePublishTableStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in events.TableStatusChanged
	if !decodeBody(w, r, &in) {
		return
	}
	if in.TableID == "" || in.Status == "" {
		writeProblem(w, http.StatusBadRequest, "Missing tableId or status", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.TableStatusChanged(r.Context(), restaurantID, in))
}

func (s *Server) handlePublishChat(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in events.ChatNew
	if !decodeBody(w, r, &in) {
		return
	}
	if in.SessionID == "" || in.Message == "" {
		writeProblem(w, http.StatusBadRequest, "Missing sessionId or message", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.ChatMessageSent(r.Context(), restaurantID, in))
}

func (s *Server) handlePublishChatRead(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in events.ChatRead
	if !decodeBody(w, r, &in) {
		return
	}
	if in.SessionID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing sessionId", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.ChatRead(r.Context(), restaurantID, in))
}

func (s *Server) handlePublishSessionEnd(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in struct {
		SessionID string `json:"sessionId"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.SessionID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing sessionId", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.SessionEnded(r.Context(), restaurantID, in.SessionID))
}

func (s *Server) handlePublishPayment(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in events.PaymentConfirmed
	if !decodeBody(w, r, &in) {
		return
	}
	if in.SessionID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing sessionId", "", r.URL.Path)
		return
	}
	s.publishResult(w, r, s.pub.PaymentConfirmed(r.Context(), restaurantID, in))
}
