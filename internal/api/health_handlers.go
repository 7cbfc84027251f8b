package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sony/gobreaker"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns gateway health with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// Component statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

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
		"sessions":    s.checkSessionStore(),
		"submissions": s.checkSubmissionCache(ctx),
		"search":      s.checkSearchIndex(),
		"upstream":    s.checkUpstream(),
		"sse":         s.checkSSEManager(),
	}

	overall := statusHealthy
	for _, c := range components {
		switch c.Status {
		case statusUnhealthy:
			overall = statusUnhealthy
		case statusDegraded:
			if overall == statusHealthy {
				overall = statusDegraded
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

// checkSessionStore verifies BadgerDB is accessible.
func (s *Server) checkSessionStore() ComponentHealth {
	if s.backends == nil || s.backends.Store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "session store not configured"}
	}

	start := time.Now()
	err := s.backends.Store.Ping()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "session store unreachable"}
	}
	health := ComponentHealth{Status: statusHealthy, Latency: latency.String()}
	if s.services != nil && s.services.Session != nil {
		health.Message = strconv.Itoa(s.services.Session.LiveCount()) + " live workflows"
	}
	return health
}

// checkSubmissionCache verifies the SQLite cache answers queries.
func (s *Server) checkSubmissionCache(ctx context.Context) ComponentHealth {
	if s.backends == nil || s.backends.Cache == nil {
		return ComponentHealth{Status: statusDegraded, Message: "submission cache not configured"}
	}

	start := time.Now()
	err := s.backends.Cache.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "submission cache unreachable"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}

// checkSearchIndex verifies the Bleve index is accessible. An empty index only
// degrades: text search of the queue falls back to nothing until a reindex.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.backends == nil || s.backends.Index == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}

	start := time.Now()
	docCount, err := s.backends.Index.Count()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "search index unreachable"}
	}
	if docCount == 0 {
		return ComponentHealth{Status: statusDegraded, Latency: latency.String(), Message: "search index empty"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: strconv.FormatUint(docCount, 10) + " moderation events indexed",
	}
}

// checkUpstream reports the circuit breaker guarding the Open Supply Hub API.
func (s *Server) checkUpstream() ComponentHealth {
	if s.backends == nil || s.backends.Upstream == nil {
		return ComponentHealth{Status: statusDegraded, Message: "upstream not configured"}
	}

	switch state := s.backends.Upstream.BreakerState(); state {
	case gobreaker.StateOpen.String():
		return ComponentHealth{Status: statusDegraded, Message: "circuit open"}
	case gobreaker.StateHalfOpen.String():
		return ComponentHealth{Status: statusDegraded, Message: "circuit half-open"}
	default:
		return ComponentHealth{Status: statusHealthy, Message: "circuit " + state}
	}
}

// checkSSEManager reports the number of connected stream clients.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.backends == nil || s.backends.SSE == nil {
		return ComponentHealth{Status: statusDegraded, Message: "SSE manager not configured"}
	}
	return ComponentHealth{Status: statusHealthy, Message: formatSSEStatus(s.backends.SSE.ClientCount())}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
