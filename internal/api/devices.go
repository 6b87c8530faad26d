package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dinestream/internal/store"
)

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	var in store.DeviceIn
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Endpoint == "" {
		writeProblem(w, http.StatusBadRequest, "Missing endpoint", "", r.URL.Path)
		return
	}
	in.RestaurantID = restaurantID
	d, err := s.store.RegisterDevice(r.Context(), in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Register device failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	items, err := s.store.ListDevices(r.Context(), restaurantID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List devices failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := s.publishAuth(w, r)
	if !ok {
		return
	}
	deviceID := chi.URLParam(r, "deviceID")
	if err := s.store.DeleteDevice(r.Context(), restaurantID, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Device not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete device failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
