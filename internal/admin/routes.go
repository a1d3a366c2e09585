package admin

import (
	"encoding/json"
	"net/http"

	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/routing"
	"github.com/soyeahso/shaperelay/internal/version"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string                 `json:"status"`
	Version        string                 `json:"version"`
	Shape          string                 `json:"shape"`
	UptimeSeconds  int64                  `json:"uptimeSeconds"`
	Platforms      []domain.ChannelStatus `json:"platforms"`
	ActiveChannels int                    `json:"activeChannels"`
	Router         *routing.Stats         `json:"router,omitempty"`
}

// ChannelsResponse is returned by GET /channels.
type ChannelsResponse struct {
	Channels []string `json:"channels"`
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /channels", s.handleChannels)
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       version.Version,
		Shape:         s.shape,
		UptimeSeconds: int64(s.uptime().Seconds()),
		Platforms:     []domain.ChannelStatus{},
	}
	if s.platforms != nil {
		resp.Platforms = s.platforms.Status()
		if !anyConnected(resp.Platforms) {
			resp.Status = "degraded"
		}
	}
	if s.active != nil {
		resp.ActiveChannels = len(s.active.List())
	}
	if s.stats != nil {
		st := s.stats.Stats()
		resp.Router = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	resp := ChannelsResponse{Channels: []string{}}
	if s.active != nil {
		if ids := s.active.List(); ids != nil {
			resp.Channels = ids
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func anyConnected(statuses []domain.ChannelStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st.Connected {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
