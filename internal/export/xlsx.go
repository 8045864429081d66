package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/iammorganparry/timeline/internal/models"
)

const sheetName = "Timeline"

// XLSXExporter renders a timeline as a single-sheet workbook with one row per
// history entry.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return "xlsx" }

// Write renders history and writes the workbook to w.
func (e *XLSXExporter) Write(w io.Writer, history []models.HistoryEntry) error {
	f, err := e.Workbook(history)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Workbook builds the workbook. Callers must Close it.
func (e *XLSXExporter) Workbook(history []models.HistoryEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"#", "Year", "Narrative", "Choice"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "D1", bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create row style: %w", err)
	}
	for _, w := range []struct {
		col   string
		width float64
	}{{"B", 12}, {"C", 90}, {"D", 40}} {
		if err := f.SetColWidth(sheetName, w.col, w.col, w.width); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column %s width: %w", w.col, err)
		}
	}

	for i, entry := range history {
		row := i + 2
		choice := ""
		if entry.HasChoice() {
			choice = *entry.Choice
		}
		values := []any{entry.ID, models.FormatYear(entry.Year), entry.Narrative, choice}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(sheetName, start, end, wrapStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("style row %d: %w", row, err)
		}
	}
	return f, nil
}
