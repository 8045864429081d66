package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iammorganparry/timeline/internal/models"
)

// Title is printed at the top of every exported timeline.
const Title = "Your Alternate History Timeline"

// Exporter renders a history log into a document.
type Exporter interface {
	Write(w io.Writer, history []models.HistoryEntry) error
	ContentType() string
	Extension() string
}

// ForFormat returns the exporter registered for a format name ("pdf" or "xlsx").
func ForFormat(format string, pdf *PDFExporter, xlsx *XLSXExporter) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "pdf":
		return pdf, nil
	case "xlsx":
		return xlsx, nil
	}
	return nil, fmt.Errorf("unknown export format %q (want pdf or xlsx)", format)
}

// WriteFile renders history to path, creating parent directories. A partially
// written file is removed on failure.
func WriteFile(ex Exporter, path string, history []models.HistoryEntry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := ex.Write(f, history); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}

// FileName builds a download name such as "timeline-1969AD-20250601-120000.pdf".
func FileName(ex Exporter, history []models.HistoryEntry, now time.Time) string {
	start := "untitled"
	if len(history) > 0 && history[0].Year != nil {
		start = strings.ReplaceAll(models.FormatYear(history[0].Year), " ", "")
	}
	return fmt.Sprintf("timeline-%s-%s.%s", start, now.Format("20060102-150405"), ex.Extension())
}
