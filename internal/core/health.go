package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/worker"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health state of the pose analysis service
type HealthStatus struct {
	Status        string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	InstanceID    string                    `json:"instance_id"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	WorkersUp     int                       `json:"workers_up"`
	WorkersTotal  int                       `json:"workers_total"`
	MQTTEnabled   bool                      `json:"mqtt_enabled"`
	MQTTConnected bool                      `json:"mqtt_connected"`
	Workers       map[string]worker.Metrics `json:"workers,omitempty"`
	Analyses      map[string]uint64         `json:"analyses"`
	Timestamp     time.Time                 `json:"timestamp"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := HealthStatus{
		Status:        StatusHealthy,
		InstanceID:    s.cfg.InstanceID,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		WorkersTotal:  len(s.workers),
		Workers:       make(map[string]worker.Metrics, len(s.workers)),
		Analyses:      make(map[string]uint64, len(s.analyses)),
		Timestamp:     time.Now().UTC(),
	}

	for k, v := range s.analyses {
		status.Analyses[k] = v
	}

	for _, w := range s.workers {
		m := w.Metrics()
		status.Workers[w.ID()] = m
		if m.Active {
			status.WorkersUp++
		}
	}

	if s.publisher != nil {
		status.MQTTEnabled = true
		status.MQTTConnected = s.publisher.Stats().Connected
	}

	switch {
	case !s.isRunning:
		status.Status = StatusUnhealthy
	case status.WorkersUp < status.WorkersTotal:
		status.Status = StatusDegraded
	case status.MQTTEnabled && !status.MQTTConnected:
		status.Status = StatusDegraded
	}

	return status
}

func (s *Service) publishHealth() {
	payload, err := json.Marshal(s.HealthCheck())
	if err != nil {
		slog.Error("failed to marshal health", "error", err)
		return
	}
	if err := s.publisher.PublishHealth(payload); err != nil {
		slog.Warn("failed to publish health", "error", err)
		return
	}
	slog.Debug("health published", "size", len(payload))
}

// LivenessHandler handles /health endpoint (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	uptime := int64(time.Since(s.started).Seconds())
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": uptime,
	})
}

// ReadinessHandler handles /readiness endpoint (detailed readiness check).
// Returns 503 only when unhealthy; degraded is still ready.
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// HealthMux returns the health endpoints
func (s *Service) HealthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	return mux
}

// StartHealthServer binds addr and serves the health endpoints in the
// background. Bind errors are returned; server.Addr holds the bound address.
func (s *Service) StartHealthServer(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Addr:         ln.Addr().String(),
		Handler:      s.HealthMux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"addr", server.Addr,
		"endpoints", []string{"/health", "/readiness"},
	)

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return server, nil
}
