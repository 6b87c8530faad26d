package api

import (
	"net/http"
	"time"

	"dinestream/internal/buildinfo"
)

func (s *Server) handleDebugInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":              s.cfg.Port,
			"authMode":          s.cfg.Auth.Mode,
			"heartbeatInterval": s.heartbeatInterval().String(),
			"hasRedisURL":       s.cfg.RedisURL != "",
			"hasDatabaseURL":    s.cfg.DatabaseURL != "",
		},
	})
}
