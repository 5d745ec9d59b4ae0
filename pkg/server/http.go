package server

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/statscollector"
)

type processStats struct {
	Name      string                 `json:"name"`
	Samples   int                    `json:"samples"`
	CurrentMB float64                `json:"current_mb"`
	Summary   statscollector.Summary `json:"summary"`
}

type statsResponse struct {
	SessionID string         `json:"session_id"`
	State     monitor.State  `json:"state"`
	Tick      int            `json:"tick"`
	Elapsed   string         `json:"elapsed"`
	Progress  float64        `json:"progress"`
	Processes []processStats `json:"processes"`
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshot", s.snapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.source.Snapshot())
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()

	resp := statsResponse{
		SessionID: snap.SessionID,
		State:     snap.State,
		Tick:      snap.Tick,
		Elapsed:   snap.Elapsed().Round(time.Second).String(),
		Progress:  snap.Progress(),
		Processes: make([]processStats, 0, len(snap.Series)),
	}
	for _, series := range snap.Ordered() {
		ps := processStats{
			Name:    series.Name,
			Samples: series.Len(),
			Summary: series.Live.Rounded(),
		}
		if n := len(series.Samples); n > 0 {
			ps.CurrentMB = statscollector.Round2(series.Samples[n-1].MB())
		}
		resp.Processes = append(resp.Processes, ps)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("error encoding response to json: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
