package models

import (
	"strconv"
	"strings"
)

// Era qualifies a year entered by the player.
type Era string

const (
	EraAD Era = "AD"
	EraBC Era = "BC"
)

func (e Era) IsValid() bool {
	return e == EraAD || e == EraBC
}

// HistoryEntry is one narrative beat in a timeline.
//
// Choice holds the decision that led from this entry to the next one, so it is
// attached after the fact. Year is nil for beats that were never resolved to a
// year.
type HistoryEntry struct {
	ID        int     `json:"id"`
	Narrative string  `json:"narrative"`
	Choice    *string `json:"choice,omitempty"`
	Year      *int    `json:"year,omitempty"`
}

// HasChoice reports whether a non-empty decision is attached to the entry.
func (e HistoryEntry) HasChoice() bool {
	return e.Choice != nil && *e.Choice != ""
}

// Render returns the entry as "(<formatted year>) <narrative>".
func (e HistoryEntry) Render() string {
	return "(" + FormatYear(e.Year) + ") " + e.Narrative
}

// FormatYear renders a signed year: -753 is "753 BC", 1969 is "1969 AD",
// nil is "".
func FormatYear(year *int) string {
	if year == nil {
		return ""
	}
	return FormatSignedYear(*year)
}

// FormatSignedYear is FormatYear for a known year.
func FormatSignedYear(y int) string {
	if y < 0 {
		return strconv.Itoa(-y) + " BC"
	}
	return strconv.Itoa(y) + " AD"
}

// RenderHistory concatenates every entry's Render output separated by a blank
// line. This is the full context handed to the narrator when advancing.
func RenderHistory(entries []HistoryEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Render()
	}
	return strings.Join(parts, "\n\n")
}

// CloneHistory returns a deep copy of a history log.
func CloneHistory(entries []HistoryEntry) []HistoryEntry {
	if entries == nil {
		return nil
	}
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntry{ID: e.ID, Narrative: e.Narrative}
		if e.Choice != nil {
			c := *e.Choice
			out[i].Choice = &c
		}
		if e.Year != nil {
			y := *e.Year
			out[i].Year = &y
		}
	}
	return out
}

// LastYear returns the year of the most recent entry that has one.
func LastYear(entries []HistoryEntry) (int, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Year != nil {
			return *entries[i].Year, true
		}
	}
	return 0, false
}

// AutoGeneratedEvent is an intervening beat the narrator inserted between the
// player's decision and the next decision point.
type AutoGeneratedEvent struct {
	Event string `json:"event"`
	Year  int    `json:"year"`
}

// Turn is what the narrator returns when a game starts or advances.
// An empty Choices list means the story has ended.
type Turn struct {
	Narrative           string               `json:"narrative"`
	Year                int                  `json:"year"`
	AutoGeneratedEvents []AutoGeneratedEvent `json:"auto_generated_events"`
	Choices             []string             `json:"choices"`
}
