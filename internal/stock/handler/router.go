package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// Handlers groups every HTTP handler of the stock service
type Handlers struct {
	Signalements *SignalementHandler
	Rotations    *RotationHandler
	Inventaires  *InventaireHandler
	Dashboard    *DashboardHandler
	Export       *ExportHandler
	Health       *HealthHandler
}

// NewRouter builds the stock service router
func NewRouter(h *Handlers, allowedOrigins []string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if h.Health != nil {
		r.Get("/health", h.Health.Health)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Signalement routes
		r.Route("/signalements", func(r chi.Router) {
			r.Get("/", h.Signalements.List)
			r.Post("/", h.Signalements.Create)
			r.Get("/export", h.Export.ExportSignalements)
			r.Post("/status", h.Signalements.BulkStatus)
			r.Post("/recompute", h.Signalements.RecomputeAll)
			r.Get("/{id}", h.Signalements.Get)
			r.Put("/{id}", h.Signalements.Update)
			r.Delete("/{id}", h.Signalements.Delete)
			r.Post("/{id}/recompute", h.Signalements.Recompute)
		})

		// Rotation routes
		r.Route("/rotations", func(r chi.Router) {
			r.Get("/", h.Rotations.List)
			r.Post("/", h.Rotations.Upsert)
			r.Post("/import", h.Rotations.Import)
			r.Get("/lookup", h.Rotations.Lookup)
			r.Delete("/{id}", h.Rotations.Delete)
		})

		// Inventaire routes
		r.Route("/inventaires", func(r chi.Router) {
			r.Get("/", h.Inventaires.List)
			r.Post("/", h.Inventaires.Create)
			r.Get("/{id}", h.Inventaires.Get)
			r.Delete("/{id}", h.Inventaires.Delete)
			r.Post("/{id}/items", h.Inventaires.AddItem)
			r.Post("/{id}/complete", h.Inventaires.Complete)
			r.Get("/{id}/export", h.Export.ExportInventaire)
		})

		// Dashboard
		r.Get("/dashboard/stats", h.Dashboard.GetStats)
	})

	return r
}
