package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/models"
	"github.com/iammorganparry/timeline/internal/timeline"
)

// Messages
type resultMsg struct {
	res timeline.Result
}

type exportedMsg struct {
	path string
	err  error
}

type archivedMsg struct {
	chronicle *models.Chronicle
	err       error
}

type spinnerTickMsg struct{}

// Spinner animation frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Activity phrases, one per request kind
var activityPhrases = map[timeline.Phase]string{
	timeline.PhaseSelectingYear:  "Consulting the archives",
	timeline.PhaseSelectingEvent: "Setting the stage",
	timeline.PhaseInGame:         "Bending the timeline",
}

// Archiver saves finished or in-progress timelines.
type Archiver interface {
	Save(title string, history []models.HistoryEntry, finished bool) (*models.Chronicle, error)
}

// Options wires the model to its collaborators. Archive may be nil.
type Options struct {
	Narrator  timeline.Narrator
	Timeout   time.Duration
	Exporter  export.Exporter
	ExportDir string
	Archive   Archiver
	Logger    *slog.Logger
	Session   []timeline.Option
}

// Model is the root Bubble Tea model
type Model struct {
	// Terminal dimensions
	width  int
	height int
	ready  bool

	session  *timeline.Session
	narrator timeline.Narrator
	timeout  time.Duration

	exporter  export.Exporter
	exportDir string
	archive   Archiver
	logger    *slog.Logger
	now       func() time.Time

	// Year entry
	yearInput textinput.Model
	era       models.Era

	// Event or choice under the cursor
	cursor int

	// Timeline log
	viewport viewport.Model

	spinnerIndex int
	// notice is a transient line about the last export or save.
	notice string

	keys KeyMap
	help help.Model
}

// NewModel creates the root model in the year selection phase.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "1969"
	ti.Prompt = "Year ❯ "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 6
	ti.Width = 12
	ti.Focus()

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return Model{
		session:   timeline.NewSession(opts.Session...),
		narrator:  opts.Narrator,
		timeout:   timeout,
		exporter:  opts.Exporter,
		exportDir: opts.ExportDir,
		archive:   opts.Archive,
		logger:    logger,
		now:       time.Now,
		yearInput: ti,
		era:       models.EraAD,
		viewport:  viewport.New(80, 10),
		keys:      DefaultKeyMap(),
		help:      newHelp(),
	}
}

func newHelp() help.Model {
	h := help.New()
	muted := lipgloss.NewStyle().Foreground(ColorFgMuted)
	h.ShortSeparator = " │ "
	h.Styles.ShortKey = HelpKeyStyle
	h.Styles.ShortDesc = muted
	h.Styles.ShortSeparator = muted
	h.Styles.FullKey = HelpKeyStyle
	h.Styles.FullDesc = muted
	h.Styles.FullSeparator = muted
	h.Styles.Ellipsis = muted
	return h
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// runCmd performs the narrator call off the update loop and reports back
// with the token-stamped result.
func (m Model) runCmd(req timeline.Request) tea.Cmd {
	narrator, timeout := m.narrator, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return resultMsg{res: timeline.Execute(ctx, narrator, req)}
	}
}

func (m Model) exportCmd() tea.Cmd {
	history := m.session.History()
	ex, dir, now := m.exporter, m.exportDir, m.now()
	return func() tea.Msg {
		path := filepath.Join(dir, export.FileName(ex, history, now))
		return exportedMsg{path: path, err: export.WriteFile(ex, path, history)}
	}
}

func (m Model) archiveCmd() tea.Cmd {
	history := m.session.History()
	finished := m.session.Phase() == timeline.PhaseGameOver
	archive := m.archive
	return func() tea.Msg {
		c, err := archive.Save("", history, finished)
		return archivedMsg{chronicle: c, err: err}
	}
}

// spinnerTickCmd returns a fast tick command for spinner animation
func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Header (2), option panel, input/error (4), status bar (1)
		m.viewport.Width = max(m.width-4, 20)
		m.viewport.Height = max(m.height-m.optionLines()-10, 3)
		m.refreshLog()
		return m, nil

	case resultMsg:
		err := m.session.Apply(msg.res)
		switch {
		case errors.Is(err, timeline.ErrStaleResult):
			m.logger.Debug("discarded stale narrator result", "token", uint64(msg.res.Token))
			return m, nil
		case err != nil:
			m.logger.Warn("narrator request failed", "request", msg.res.Kind.String(), "error", msg.res.Err)
		}
		m.cursor = 0
		m.refreshLog()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.logger.Error("export failed", "path", msg.path, "error", msg.err)
			m.notice = "Export failed: " + msg.err.Error()
			return m, nil
		}
		m.logger.Info("timeline exported", "path", msg.path)
		m.notice = "Exported to " + msg.path
		return m, nil

	case archivedMsg:
		if msg.err != nil {
			m.logger.Error("archive failed", "error", msg.err)
			m.notice = "Save failed: " + msg.err.Error()
			return m, nil
		}
		m.notice = fmt.Sprintf("Saved chronicle %q (%s)", msg.chronicle.Title, msg.chronicle.ID[:8])
		return m, nil

	case spinnerTickMsg:
		if m.session.Loading() {
			m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
			return m, spinnerTickCmd()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.session.Phase() == timeline.PhaseSelectingYear {
		var cmd tea.Cmd
		m.yearInput, cmd = m.yearInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		return m, tea.Quit
	}

	phase := m.session.Phase()

	// The year field takes printable keys, so only non-printing bindings apply.
	if phase == timeline.PhaseSelectingYear {
		switch {
		case msg.Type == tea.KeyEsc:
			return m, tea.Quit
		case msg.Type == tea.KeyCtrlR:
			return m.reset(), nil
		case key.Matches(msg, m.keys.Era):
			m.toggleEra()
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			return m.submit(func(s *timeline.Session) (timeline.Request, error) {
				return s.SubmitYear(m.yearInput.Value(), m.era)
			})
		}
		var cmd tea.Cmd
		m.yearInput, cmd = m.yearInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Reset):
		return m.reset(), nil
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.options())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		opts := m.options()
		if len(opts) == 0 || m.cursor >= len(opts) {
			return m, nil
		}
		picked := opts[m.cursor]
		if phase == timeline.PhaseSelectingEvent {
			return m.submit(func(s *timeline.Session) (timeline.Request, error) {
				return s.SelectEvent(picked)
			})
		}
		return m.submit(func(s *timeline.Session) (timeline.Request, error) {
			return s.Choose(picked)
		})
	case key.Matches(msg, m.keys.Export):
		if m.exporter != nil && len(m.session.History()) > 0 {
			m.notice = "Exporting…"
			return m, m.exportCmd()
		}
	case key.Matches(msg, m.keys.Archive):
		if m.archive != nil && len(m.session.History()) > 0 {
			m.notice = "Saving…"
			return m, m.archiveCmd()
		}
	}
	return m, nil
}

// submit issues a session command and, when it produces a request, starts the
// narrator call and the spinner. Rejected commands leave their message in the
// session snapshot.
func (m Model) submit(issue func(*timeline.Session) (timeline.Request, error)) (tea.Model, tea.Cmd) {
	req, err := issue(m.session)
	if err != nil {
		if !timeline.IsValidation(err) {
			m.logger.Debug("command rejected", "error", err)
		}
		return m, nil
	}
	m.notice = ""
	m.spinnerIndex = 0
	return m, tea.Batch(m.runCmd(req), spinnerTickCmd())
}

func (m Model) reset() Model {
	m.session.Reset()
	m.yearInput.Reset()
	m.yearInput.Focus()
	m.era = models.EraAD
	m.cursor = 0
	m.notice = ""
	m.refreshLog()
	return m
}

func (m *Model) toggleEra() {
	if m.era == models.EraAD {
		m.era = models.EraBC
	} else {
		m.era = models.EraAD
	}
}

// options returns the list the cursor moves over in the current phase. A
// failed game offers nothing until it is reset.
func (m Model) options() []string {
	snap := m.session.Snapshot()
	if snap.Failed {
		return nil
	}
	switch snap.Phase {
	case timeline.PhaseSelectingEvent:
		return snap.InitialEvents
	case timeline.PhaseInGame:
		return snap.Choices
	}
	return nil
}

func (m Model) optionLines() int {
	return len(m.options()) + 2
}

func (m *Model) refreshLog() {
	m.viewport.SetContent(renderLog(m.session.History(), m.viewport.Width))
	m.viewport.GotoBottom()
}

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	snap := m.session.Snapshot()

	sections := []string{m.renderHeader(snap)}

	if len(snap.History) > 0 {
		sections = append(sections, PanelStyle.Width(m.width-2).Render(
			PanelTitleStyle.Render("TIMELINE")+"\n"+m.viewport.View()))
	}

	switch {
	case snap.Failed:
		// Only reset applies.
	case snap.Phase == timeline.PhaseSelectingYear:
		sections = append(sections, m.renderYearInput())
	case snap.Phase == timeline.PhaseSelectingEvent:
		sections = append(sections, m.renderOptions("Choose where history diverges", snap.InitialEvents, snap.Loading))
	case snap.Phase == timeline.PhaseInGame:
		sections = append(sections, m.renderOptions("What happens next?", snap.Choices, snap.Loading))
	case snap.Phase == timeline.PhaseGameOver:
		sections = append(sections, SuccessStyle.Render("  The timeline has reached its end."))
	}

	if snap.Error != "" {
		sections = append(sections, ErrorPanelStyle.Width(m.width-2).Render(snap.Error))
	}
	if m.notice != "" {
		sections = append(sections, DimStyle.Render("  "+m.notice))
	}

	sections = append(sections, m.renderStatusBar(snap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(snap timeline.Snapshot) string {
	title := HeaderStyle.Render("ALTERNATE HISTORY")
	subtitle := SubtitleStyle.Render("  Rewrite the past, one decision at a time")
	if snap.SelectedYear != nil {
		subtitle = SubtitleStyle.Render("  Diverging from ") + YearStyle.Render(models.FormatYear(snap.SelectedYear))
	}
	return title + subtitle + "\n"
}

func (m Model) renderYearInput() string {
	ad, bc := "AD", "BC"
	if m.era == models.EraAD {
		ad = EraActiveStyle.Render("[AD]")
	} else {
		bc = EraActiveStyle.Render("[BC]")
	}
	return InputStyle.Render(m.yearInput.View() + "  " + ad + " " + bc)
}

func (m Model) renderOptions(title string, opts []string, loading bool) string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render(title))
	for i, opt := range opts {
		b.WriteString("\n")
		line := fmt.Sprintf("%d. %s", i+1, opt)
		if i == m.cursor && !loading {
			b.WriteString(OptionSelectedStyle.Render("❯ " + line))
		} else {
			b.WriteString(OptionStyle.Render(line))
		}
	}
	return PanelStyle.Width(m.width - 2).Render(b.String())
}

// renderStatusBar shows the spinner while a request is in flight and the
// keys that apply to the current screen otherwise.
func (m Model) renderStatusBar(snap timeline.Snapshot) string {
	var status string
	switch {
	case snap.Loading:
		phrase := activityPhrases[snap.Phase]
		if snap.PendingChoice != "" {
			phrase = "You chose: " + snap.PendingChoice
		}
		status = StatusRunningStyle.Render(spinnerFrames[m.spinnerIndex%len(spinnerFrames)] + " " + phrase + "…")
	case snap.Failed:
		status = StatusFailedStyle.Render("✗ Failed")
	default:
		status = StatusIdleStyle.Render("○ Ready")
	}

	keys := m.keys.forScreen(screen{
		phase:      snap.Phase,
		busy:       snap.Loading,
		failed:     snap.Failed,
		canExport:  len(snap.History) > 0 && m.exporter != nil,
		canArchive: len(snap.History) > 0 && m.archive != nil,
	})
	return StatusBarStyle.Render(status + "  " + m.help.View(keys))
}

// renderLog renders history entries with their year labels and the choices
// that led onward.
func renderLog(history []models.HistoryEntry, width int) string {
	if len(history) == 0 {
		return ""
	}
	textWidth := max(width-4, 10)

	var b strings.Builder
	for i, e := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.Year != nil {
			b.WriteString(YearStyle.Render(models.FormatYear(e.Year)))
			b.WriteString("\n")
		}
		b.WriteString(NarrativeStyle.Width(textWidth).Render(e.Narrative))
		if e.HasChoice() {
			b.WriteString("\n")
			b.WriteString(ChoiceMadeStyle.Render("→ " + *e.Choice))
		}
	}
	return b.String()
}
