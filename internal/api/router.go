package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/games"
	"github.com/iammorganparry/timeline/internal/models"
)

// ChronicleStore is the archive used by the game and chronicle handlers.
type ChronicleStore interface {
	Save(title string, history []models.HistoryEntry, finished bool) (*models.Chronicle, error)
	Get(id string) (*models.ChronicleWithEntries, error)
	List(limit int) ([]*models.Chronicle, error)
	Delete(id string) error
	ChronicleCount() (int, error)
}

// HealthChecker reports whether the narrator backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options holds the HTTP-level settings.
type Options struct {
	APIKey      string
	CORSOrigins []string
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	registry *games.Registry,
	chronicles ChronicleStore,
	narrator HealthChecker,
	pdf *export.PDFExporter,
	xlsx *export.XLSXExporter,
	opts Options,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS(opts.CORSOrigins))
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(registry, chronicles, narrator)
	gameH := NewGameHandler(registry, chronicles, pdf, xlsx, logger)
	chronicleH := NewChronicleHandler(chronicles, pdf, xlsx, logger)

	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.APIKey))

		r.Route("/games", func(r chi.Router) {
			r.Post("/", gameH.Create)
			r.Get("/{id}", gameH.Get)
			r.Delete("/{id}", gameH.Delete)
			r.Post("/{id}/year", gameH.SubmitYear)
			r.Post("/{id}/event", gameH.SelectEvent)
			r.Post("/{id}/choice", gameH.Choose)
			r.Post("/{id}/reset", gameH.Reset)
			r.Post("/{id}/archive", gameH.Archive)
			r.Get("/{id}/export.pdf", gameH.ExportPDF)
			r.Get("/{id}/export.xlsx", gameH.ExportXLSX)
		})

		r.Route("/chronicles", func(r chi.Router) {
			r.Get("/", chronicleH.List)
			r.Get("/{id}", chronicleH.Get)
			r.Delete("/{id}", chronicleH.Delete)
			r.Get("/{id}/export.pdf", chronicleH.ExportPDF)
			r.Get("/{id}/export.xlsx", chronicleH.ExportXLSX)
		})
	})

	return r
}
