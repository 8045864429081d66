package timeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iammorganparry/timeline/internal/models"
)

// Phase is the discrete stage of a game.
type Phase string

const (
	PhaseSelectingYear  Phase = "selecting_year"
	PhaseSelectingEvent Phase = "selecting_event"
	PhaseInGame         Phase = "in_game"
	PhaseGameOver       Phase = "game_over"
)

// state is the phase payload. Each variant carries only the fields that are
// meaningful in its phase.
type state interface {
	phase() Phase
}

type selectingYear struct{}

type selectingEvent struct {
	year   int
	events []string
}

type inGame struct {
	year    int
	log     []models.HistoryEntry
	choices []string
}

type gameOver struct {
	year int
	log  []models.HistoryEntry
}

func (selectingYear) phase() Phase  { return PhaseSelectingYear }
func (selectingEvent) phase() Phase { return PhaseSelectingEvent }
func (inGame) phase() Phase         { return PhaseInGame }
func (gameOver) phase() Phase       { return PhaseGameOver }

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	Phase         Phase                 `json:"phase"`
	SelectedYear  *int                  `json:"selectedYear,omitempty"`
	InitialEvents []string              `json:"initialEvents"`
	History       []models.HistoryEntry `json:"history"`
	Choices       []string              `json:"choices"`
	PendingChoice string                `json:"pendingChoice,omitempty"`
	Loading       bool                  `json:"loading"`
	Failed        bool                  `json:"failed"`
	Error         string                `json:"error,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used for the upper bound of year validation.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is the turn-by-turn timeline state machine for a single game.
//
// Commands (SubmitYear, SelectEvent, Choose) validate locally, then occupy the
// single in-flight slot and hand back a Request. The caller runs it, usually
// via Execute, and feeds the Result to Apply. Results whose token no longer
// matches the slot are dropped, which covers responses that arrive after a
// Reset. A failed request or broken guard ends the game: every command returns
// ErrFailed until Reset. Local validation errors do not. Session is safe for
// concurrent use.
type Session struct {
	mu       sync.Mutex
	st       state
	inflight *Request
	lastTok  Token
	err      string
	failed   bool
	now      func() time.Time
}

// NewSession creates a session in PhaseSelectingYear.
func NewSession(opts ...Option) *Session {
	s := &Session{
		st:  selectingYear{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.phase()
}

// Loading reports whether a request is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// Failed reports whether the game ended in a failure and needs a Reset.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// SubmitYear validates the player's year and issues the initial events request.
func (s *Session) SubmitYear(input string, era models.Era) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(PhaseSelectingYear); err != nil {
		return Request{}, err
	}

	year, err := ParseYear(input, era, s.now())
	if err != nil {
		s.err = err.Error()
		return Request{}, err
	}

	s.err = ""
	return s.issue(Request{Kind: RequestInitialEvents, Year: year}), nil
}

// SelectEvent issues the start game request for one of the offered events.
func (s *Session) SelectEvent(event string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(PhaseSelectingEvent); err != nil {
		return Request{}, err
	}
	st := s.st.(selectingEvent)

	if !contains(st.events, event) {
		err := &ValidationError{Message: "Please pick one of the offered events."}
		s.err = err.Error()
		return Request{}, err
	}

	s.err = ""
	return s.issue(Request{Kind: RequestStartGame, Event: event, Year: st.year}), nil
}

// Choose issues the advance request for one of the offered choices. The
// choice is attached to the last history entry once the narrator answers.
func (s *Session) Choose(choice string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(PhaseInGame); err != nil {
		return Request{}, err
	}
	st := s.st.(inGame)

	if !contains(st.choices, choice) {
		err := &ValidationError{Message: "That choice is not on offer."}
		s.err = err.Error()
		return Request{}, err
	}

	lastYear, ok := models.LastYear(st.log)
	if !ok || len(st.log) == 0 {
		s.err = userMessage(RequestAdvance, ErrNoYear)
		s.failed = true
		return Request{}, ErrNoYear
	}

	s.err = ""
	return s.issue(Request{
		Kind:    RequestAdvance,
		Year:    lastYear,
		Choice:  choice,
		History: models.RenderHistory(st.log),
	}), nil
}

// Apply delivers the outcome of the in-flight request. It returns
// ErrStaleResult, leaving the session untouched, when res does not belong to
// the current slot. A failed result, or a payload that cannot be applied,
// clears the slot, records a player-facing message and keeps the phase the
// session was in when the request was issued. The game stays failed until
// Reset, and Apply returns ErrRequestFailed.
func (s *Session) Apply(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil || res.Token != s.inflight.Token {
		return ErrStaleResult
	}
	req := *s.inflight
	s.inflight = nil

	if res.Err == nil {
		res.Err = s.transition(req, res)
	}
	if res.Err != nil {
		s.err = userMessage(req.Kind, res.Err)
		s.failed = true
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, req.Kind, res.Err)
	}
	s.err = ""
	return nil
}

// Reset discards every piece of game state and returns to PhaseSelectingYear.
// Any in-flight request is orphaned; its result will be rejected by Apply.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st = selectingYear{}
	s.inflight = nil
	s.err = ""
	s.failed = false
}

// Snapshot returns a copy of the session safe to hand to renderers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:         s.st.phase(),
		InitialEvents: []string{},
		History:       []models.HistoryEntry{},
		Choices:       []string{},
		Loading:       s.inflight != nil,
		Failed:        s.failed,
		Error:         s.err,
	}
	if s.inflight != nil && s.inflight.Kind == RequestAdvance {
		snap.PendingChoice = s.inflight.Choice
	}

	switch st := s.st.(type) {
	case selectingEvent:
		snap.SelectedYear = intPtr(st.year)
		snap.InitialEvents = append(snap.InitialEvents, st.events...)
	case inGame:
		snap.SelectedYear = intPtr(st.year)
		snap.History = models.CloneHistory(st.log)
		snap.Choices = append(snap.Choices, st.choices...)
	case gameOver:
		snap.SelectedYear = intPtr(st.year)
		snap.History = models.CloneHistory(st.log)
	}
	return snap
}

// History returns a copy of the current history log.
func (s *Session) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.st.(type) {
	case inGame:
		return models.CloneHistory(st.log)
	case gameOver:
		return models.CloneHistory(st.log)
	}
	return nil
}

// ready checks that a new command may be issued. Caller holds s.mu.
func (s *Session) ready(want Phase) error {
	if s.failed {
		return ErrFailed
	}
	if s.inflight != nil {
		return ErrBusy
	}
	if got := s.st.phase(); got != want {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, got, want)
	}
	return nil
}

// issue fills in a fresh token and occupies the slot. Caller holds s.mu.
func (s *Session) issue(req Request) Request {
	s.lastTok++
	req.Token = s.lastTok
	r := req
	s.inflight = &r
	return req
}

// transition applies a successful result. It builds the next state fully
// before swapping it in, so an invalid payload leaves the session as it was.
// Caller holds s.mu.
func (s *Session) transition(req Request, res Result) error {
	switch req.Kind {
	case RequestInitialEvents:
		events := nonEmpty(res.Events)
		if len(events) == 0 {
			return fmt.Errorf("narrator proposed no events for %s", models.FormatSignedYear(req.Year))
		}
		s.st = selectingEvent{year: req.Year, events: events}
		return nil

	case RequestStartGame:
		if res.Turn == nil {
			return fmt.Errorf("narrator returned no turn")
		}
		origin := models.HistoryEntry{
			ID:        0,
			Narrative: fmt.Sprintf("The timeline begins in %s: %s", models.FormatSignedYear(req.Year), req.Event),
			Year:      intPtr(req.Year),
		}
		log := appendTurn([]models.HistoryEntry{origin}, res.Turn)
		s.st = next(req.Year, log, res.Turn.Choices)
		return nil

	case RequestAdvance:
		if res.Turn == nil {
			return fmt.Errorf("narrator returned no turn")
		}
		st, ok := s.st.(inGame)
		if !ok || len(st.log) == 0 {
			return ErrNoYear
		}
		log := models.CloneHistory(st.log)
		choice := req.Choice
		log[len(log)-1].Choice = &choice
		log = appendTurn(log, res.Turn)
		s.st = next(st.year, log, res.Turn.Choices)
		return nil
	}
	return fmt.Errorf("unknown request kind %d", req.Kind)
}

// appendTurn appends the primary beat followed by each auto-generated event,
// continuing ids from the current log length.
func appendTurn(log []models.HistoryEntry, turn *models.Turn) []models.HistoryEntry {
	log = append(log, models.HistoryEntry{
		ID:        len(log),
		Narrative: turn.Narrative,
		Year:      intPtr(turn.Year),
	})
	for _, ev := range turn.AutoGeneratedEvents {
		log = append(log, models.HistoryEntry{
			ID:        len(log),
			Narrative: ev.Event,
			Year:      intPtr(ev.Year),
		})
	}
	return log
}

func next(year int, log []models.HistoryEntry, choices []string) state {
	choices = nonEmpty(choices)
	if len(choices) == 0 {
		return gameOver{year: year, log: log}
	}
	return inGame{year: year, log: log, choices: choices}
}

// userMessage converts a failure into the text shown to the player.
func userMessage(kind RequestKind, err error) string {
	if IsValidation(err) {
		return err.Error()
	}
	var what string
	switch kind {
	case RequestInitialEvents:
		what = "Could not fetch historical events for that year"
	case RequestStartGame:
		what = "Could not start the timeline"
	default:
		what = "Could not advance the timeline"
	}
	return fmt.Sprintf("%s (%v). Reset to start a new game.", what, err)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }
