package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/timeline/internal/export"
)

type ChronicleHandler struct {
	store  ChronicleStore
	pdf    *export.PDFExporter
	xlsx   *export.XLSXExporter
	logger *slog.Logger
	now    func() time.Time
}

func NewChronicleHandler(store ChronicleStore, pdf *export.PDFExporter, xlsx *export.XLSXExporter, logger *slog.Logger) *ChronicleHandler {
	return &ChronicleHandler{store: store, pdf: pdf, xlsx: xlsx, logger: logger, now: time.Now}
}

// List handles GET /chronicles
func (h *ChronicleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.store.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /chronicles/{id}
func (h *ChronicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chronicle not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /chronicles/{id}
func (h *ChronicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPDF handles GET /chronicles/{id}/export.pdf
func (h *ChronicleHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.pdf)
}

// ExportXLSX handles GET /chronicles/{id}/export.xlsx
func (h *ChronicleHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.xlsx)
}

func (h *ChronicleHandler) export(w http.ResponseWriter, r *http.Request, ex export.Exporter) {
	id := chi.URLParam(r, "id")
	c, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chronicle not found")
		return
	}

	if err := writeDocument(w, ex, c.Entries, h.now()); err != nil {
		h.logger.Error("export failed", "chronicle_id", id, "format", ex.Extension(), "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
	}
}
