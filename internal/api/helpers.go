package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	return nil
}

// writeDocument renders the whole document before sending any bytes, so a
// failed export still gets a JSON error response.
func writeDocument(w http.ResponseWriter, ex export.Exporter, history []models.HistoryEntry, now time.Time) error {
	var buf bytes.Buffer
	if err := ex.Write(&buf, history); err != nil {
		return err
	}
	w.Header().Set("Content-Type", ex.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(ex, history, now)))
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
