package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is anything that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks lists the components /health reports on. Nil entries are
// reported as not configured.
type HealthChecks struct {
	Remote Pinger
	Cache  Pinger
}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		// The engine keeps serving from its cache when the remote is down,
		// so an unreachable remote only degrades the server.
		"remote": checkPinger(ctx, s.health.Remote, "remote store", "degraded"),
		"cache":  checkPinger(ctx, s.health.Cache, "local cache", "unhealthy"),
		"sse":    s.checkSSEManager(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkPinger pings p and reports failureStatus if it fails.
func checkPinger(ctx context.Context, p Pinger, name, failureStatus string) ComponentHealth {
	if p == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: name + " not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  failureStatus,
			Latency: latency.String(),
			Message: name + " unreachable",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkSSEManager verifies the SSE event system is running.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "SSE manager not configured",
		}
	}
	if s.sseManager.IsShutdown() {
		return ComponentHealth{
			Status:  "unhealthy",
			Message: "SSE manager shut down",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}
