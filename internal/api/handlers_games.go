package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/games"
	"github.com/iammorganparry/timeline/internal/models"
	"github.com/iammorganparry/timeline/internal/timeline"
)

type GameHandler struct {
	registry   *games.Registry
	chronicles ChronicleStore
	pdf        *export.PDFExporter
	xlsx       *export.XLSXExporter
	logger     *slog.Logger
	now        func() time.Time
}

func NewGameHandler(registry *games.Registry, chronicles ChronicleStore, pdf *export.PDFExporter, xlsx *export.XLSXExporter, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		registry:   registry,
		chronicles: chronicles,
		pdf:        pdf,
		xlsx:       xlsx,
		logger:     logger,
		now:        time.Now,
	}
}

// Create handles POST /games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.registry.Create())
}

// Get handles GET /games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.View(chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, v, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Delete handles DELETE /games/{id}
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeGameError(w, games.View{}, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitYear handles POST /games/{id}/year
func (h *GameHandler) SubmitYear(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitYearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v, err := h.registry.SubmitYear(r.Context(), chi.URLParam(r, "id"), req.Year, req.Era)
	if err != nil {
		writeGameError(w, v, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SelectEvent handles POST /games/{id}/event
func (h *GameHandler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	var req models.SelectEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}

	v, err := h.registry.SelectEvent(r.Context(), chi.URLParam(r, "id"), req.Event)
	if err != nil {
		writeGameError(w, v, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Choose handles POST /games/{id}/choice
func (h *GameHandler) Choose(w http.ResponseWriter, r *http.Request) {
	var req models.ChooseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Choice == "" {
		writeError(w, http.StatusBadRequest, "choice is required")
		return
	}

	v, err := h.registry.Choose(r.Context(), chi.URLParam(r, "id"), req.Choice)
	if err != nil {
		writeGameError(w, v, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Reset handles POST /games/{id}/reset
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.Reset(chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, v, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Archive handles POST /games/{id}/archive
func (h *GameHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req models.ArchiveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	g, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, games.View{}, err)
		return
	}
	history := g.Session.History()
	if len(history) == 0 {
		writeError(w, http.StatusConflict, "the timeline has not started yet")
		return
	}

	c, err := h.chronicles.Save(req.Title, history, g.Session.Phase() == timeline.PhaseGameOver)
	if err != nil {
		h.logger.Error("archive failed", "game_id", g.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("timeline archived", "game_id", g.ID, "chronicle_id", c.ID, "entries", c.EntryCount)
	writeJSON(w, http.StatusCreated, c)
}

// ExportPDF handles GET /games/{id}/export.pdf
func (h *GameHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.pdf)
}

// ExportXLSX handles GET /games/{id}/export.xlsx
func (h *GameHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.xlsx)
}

func (h *GameHandler) export(w http.ResponseWriter, r *http.Request, ex export.Exporter) {
	g, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, games.View{}, err)
		return
	}
	history := g.Session.History()
	if len(history) == 0 {
		writeError(w, http.StatusConflict, "the timeline has not started yet")
		return
	}

	if err := writeDocument(w, ex, history, h.now()); err != nil {
		h.logger.Error("export failed", "game_id", g.ID, "format", ex.Extension(), "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	h.logger.Info("timeline exported", "game_id", g.ID, "format", ex.Extension(), "entries", len(history))
}

// writeGameError maps registry and session errors to status codes. Local
// validation and narrator failures return the game view, which carries the
// player-facing message.
func writeGameError(w http.ResponseWriter, v games.View, err error) {
	switch {
	case errors.Is(err, games.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case timeline.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, v)
	case errors.Is(err, timeline.ErrRequestFailed):
		writeJSON(w, http.StatusBadGateway, v)
	case errors.Is(err, timeline.ErrBusy), errors.Is(err, timeline.ErrWrongPhase),
		errors.Is(err, timeline.ErrNoYear), errors.Is(err, timeline.ErrFailed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
