package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/iammorganparry/timeline/internal/models"
)

const (
	fontFamily   = "Helvetica"
	choicePrefix = "Choice: "
)

// PDFExporter renders a timeline as a paginated PDF.
type PDFExporter struct {
	layout Layout
}

// NewPDFExporter creates a PDF exporter with the given layout.
func NewPDFExporter(layout Layout) *PDFExporter {
	return &PDFExporter{layout: layout}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }
func (e *PDFExporter) Extension() string   { return "pdf" }

// Write renders history and writes the PDF to w.
func (e *PDFExporter) Write(w io.Writer, history []models.HistoryEntry) error {
	pdf, err := e.Render(history)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Render lays out and draws the document without serialising it.
func (e *PDFExporter) Render(history []models.HistoryEntry) (*fpdf.Fpdf, error) {
	l := e.layout
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: l.PageWidth, Ht: l.PageHeight},
	})
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(false, l.Margin)
	pdf.SetTitle(Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", l.TitleSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(l.Margin, l.Margin+l.TitleSize*0.35, tr(latin1(Title)))

	blocks := e.blocks(pdf, history)
	placements := l.Paginate(blocks, l.ContentTop())

	page := 0
	for _, p := range placements {
		for page < p.Page {
			pdf.AddPage()
			page++
		}
		x := l.Margin
		if p.Block.Kind == BlockChoice {
			x += l.ChoiceIndent
			pdf.SetFont(fontFamily, "I", l.FontSize)
			pdf.SetTextColor(40, 80, 160)
		} else {
			pdf.SetFont(fontFamily, "", l.FontSize)
			pdf.SetTextColor(20, 20, 20)
		}
		for i, line := range p.Block.Lines {
			pdf.Text(x, p.Y+float64(i)*l.LineHeight, tr(line))
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

// blocks wraps every entry with the fonts it will be drawn in.
func (e *PDFExporter) blocks(pdf *fpdf.Fpdf, history []models.HistoryEntry) []Block {
	l := e.layout
	var blocks []Block
	for _, entry := range history {
		pdf.SetFont(fontFamily, "", l.FontSize)
		blocks = append(blocks, Block{
			Kind:  BlockNarrative,
			Lines: wrap(pdf, latin1(entry.Render()), l.TextWidth()),
		})

		if entry.HasChoice() {
			pdf.SetFont(fontFamily, "I", l.FontSize)
			blocks = append(blocks, Block{
				Kind:  BlockChoice,
				Lines: wrap(pdf, latin1(choicePrefix+*entry.Choice), l.TextWidth()-l.ChoiceIndent),
			})
		}
	}
	return blocks
}

func wrap(pdf *fpdf.Fpdf, text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines = append(lines, pdf.SplitText(para, width)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

var typographic = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", "\"", "”", "\"",
	"–", "-", "—", "-",
	"…", "...", "\u00a0", " ",
	"\r", "", "\t", " ",
)

// latin1 folds text into runes the core PDF fonts can measure. Common
// typographic punctuation is mapped to ASCII; anything else outside Latin-1
// becomes '?'.
func latin1(s string) string {
	s = typographic.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r < 0x20, r >= 0x7f && r < 0xa0:
			// control characters
		case r > 0xff:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
