package export

// Layout describes page geometry in millimetres.
type Layout struct {
	PageWidth    float64
	PageHeight   float64
	Margin       float64
	TitleSize    float64
	FontSize     float64
	LineHeight   float64
	BlockGap     float64
	ChoiceIndent float64
}

// DefaultLayout is A4 portrait.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:    210,
		PageHeight:   297,
		Margin:       15,
		TitleSize:    18,
		FontSize:     12,
		LineHeight:   7,
		BlockGap:     4,
		ChoiceIndent: 10,
	}
}

// UsableHeight is the cursor position past which a new block starts a new page.
func (l Layout) UsableHeight() float64 {
	return l.PageHeight - l.Margin
}

// TextWidth is the wrap width for narrative blocks.
func (l Layout) TextWidth() float64 {
	return l.PageWidth - 2*l.Margin
}

// ContentTop is where the cursor starts on the first page, below the title.
func (l Layout) ContentTop() float64 {
	return l.Margin + l.TitleSize*0.6 + l.LineHeight
}

// BlockKind distinguishes narrative text from an attached choice.
type BlockKind int

const (
	BlockNarrative BlockKind = iota
	BlockChoice
)

// Block is a run of already wrapped lines that is always drawn together.
type Block struct {
	Kind  BlockKind
	Lines []string
}

// Height is the vertical space the block's lines take.
func (b Block) Height(l Layout) float64 {
	return float64(len(b.Lines)) * l.LineHeight
}

// Placement positions a block: page is zero-based, Y is the first baseline.
type Placement struct {
	Block Block
	Page  int
	Y     float64
}

// Paginate assigns each block a page and cursor position, starting at
// startY on page 0. The overflow check happens only before a block: when the
// cursor is past UsableHeight a new page starts and the cursor returns to
// the top margin. A block is never split, so a block taller than the
// remaining space runs past the bottom margin.
func (l Layout) Paginate(blocks []Block, startY float64) []Placement {
	out := make([]Placement, 0, len(blocks))
	page := 0
	y := startY
	for _, b := range blocks {
		if y > l.UsableHeight() {
			page++
			y = l.Margin
		}
		out = append(out, Placement{Block: b, Page: page, Y: y})
		y += b.Height(l) + l.BlockGap
	}
	return out
}

// Pages returns the number of pages a placement list spans.
func Pages(placements []Placement) int {
	if len(placements) == 0 {
		return 1
	}
	return placements[len(placements)-1].Page + 1
}
