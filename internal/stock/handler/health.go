package handler

import (
	"context"
	"net/http"

	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
)

// HealthCheck reports the status of one dependency as {"status": "up"|"down"|"disabled", ...}
type HealthCheck func(ctx context.Context) map[string]string

// HealthHandler reports service and dependency health
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a health handler for the named dependency checks
func NewHealthHandler(serviceName string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		service: serviceName,
		checks:  checks,
	}
}

// Health answers 200 when every dependency is up or disabled and 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"service": h.service,
	}

	healthy := true
	for name, check := range h.checks {
		result := check(r.Context())
		if result["status"] == "down" {
			healthy = false
		}
		body[name] = result
	}

	status := http.StatusOK
	body["status"] = "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	httputil.JSON(w, status, body)
}
