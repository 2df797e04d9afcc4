package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/restalign/internal/store"
)

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
		"archive": s.checkArchive(ctx),
		"limiter": s.checkLimiter(),
		"events":  s.checkEvents(),
	}

	overall := "healthy"
	for _, c := range components {
		switch {
		case c.Status == "unhealthy":
			overall = "unhealthy"
		case c.Status == "degraded" && overall == "healthy":
			overall = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkArchive verifies the run archive answers a listing.
func (s *Server) checkArchive(ctx context.Context) ComponentHealth {
	if s.runs == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "run archive not configured",
		}
	}

	start := time.Now()
	_, err := s.runs.ListRuns(ctx, store.ListRunsParams{PaginationParams: store.PaginationParams{Limit: 1}})
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "run archive read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

func (s *Server) checkLimiter() ComponentHealth {
	if s.limiter == nil {
		return ComponentHealth{Status: "healthy", Message: "rate limiting disabled"}
	}
	return ComponentHealth{Status: "healthy", Message: formatClients(s.limiter.Len())}
}

func (s *Server) checkEvents() ComponentHealth {
	if s.events == nil {
		return ComponentHealth{Status: "healthy", Message: "event stream disabled"}
	}
	return ComponentHealth{Status: "healthy", Message: formatSubscribers(s.events.ClientCount())}
}

func formatSubscribers(n int) string {
	if n == 1 {
		return "1 subscriber"
	}
	return fmt.Sprintf("%d subscribers", n)
}

func formatClients(n int) string {
	switch n {
	case 0:
		return "no tracked clients"
	case 1:
		return "1 tracked client"
	default:
		return fmt.Sprintf("%d tracked clients", n)
	}
}
