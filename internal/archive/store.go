package archive

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/timeline/internal/models"
)

// Store persists exported timelines. Live game state never goes through it.
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a chronicle store.
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save archives a history log. An empty title is derived from the first entry.
func (s *Store) Save(title string, history []models.HistoryEntry, finished bool) (*models.Chronicle, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("cannot archive an empty timeline")
	}

	c := &models.Chronicle{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(title),
		EntryCount: len(history),
		Finished:   finished,
		CreatedAt:  s.now().Unix(),
	}
	if history[0].Year != nil {
		y := *history[0].Year
		c.StartYear = &y
	}
	if c.Title == "" {
		c.Title = defaultTitle(history)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO chronicles (id, title, start_year, entry_count, finished, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, nullInt(c.StartYear), c.EntryCount, c.Finished, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chronicle: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chronicle_entries (chronicle_id, seq, narrative, choice, year)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range history {
		var choice sql.NullString
		if e.Choice != nil {
			choice = sql.NullString{String: *e.Choice, Valid: true}
		}
		if _, err := stmt.Exec(c.ID, e.ID, e.Narrative, choice, nullInt(e.Year)); err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chronicle: %w", err)
	}
	return c, nil
}

// Get fetches a chronicle with its entries. Returns nil, nil when not found.
func (s *Store) Get(id string) (*models.ChronicleWithEntries, error) {
	var c models.Chronicle
	var startYear sql.NullInt64

	err := s.db.QueryRow(`
		SELECT id, title, start_year, entry_count, finished, created_at
		FROM chronicles WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &startYear, &c.EntryCount, &c.Finished, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chronicle: %w", err)
	}
	if startYear.Valid {
		y := int(startYear.Int64)
		c.StartYear = &y
	}

	rows, err := s.db.Query(`
		SELECT seq, narrative, choice, year
		FROM chronicle_entries
		WHERE chronicle_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := &models.ChronicleWithEntries{Chronicle: c, Entries: []models.HistoryEntry{}}
	for rows.Next() {
		var e models.HistoryEntry
		var choice sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Narrative, &choice, &year); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if choice.Valid {
			v := choice.String
			e.Choice = &v
		}
		if year.Valid {
			y := int(year.Int64)
			e.Year = &y
		}
		out.Entries = append(out.Entries, e)
	}
	return out, rows.Err()
}

// List returns recent chronicles, newest first.
func (s *Store) List(limit int) ([]*models.Chronicle, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, title, start_year, entry_count, finished, created_at
		FROM chronicles
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list chronicles: %w", err)
	}
	defer rows.Close()

	chronicles := []*models.Chronicle{}
	for rows.Next() {
		var c models.Chronicle
		var startYear sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Title, &startYear, &c.EntryCount, &c.Finished, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chronicle: %w", err)
		}
		if startYear.Valid {
			y := int(startYear.Int64)
			c.StartYear = &y
		}
		chronicles = append(chronicles, &c)
	}
	return chronicles, rows.Err()
}

// Delete removes a chronicle and its entries. Deleting a missing id is not an error.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM chronicles WHERE id = ?`, id)
	return err
}

func defaultTitle(history []models.HistoryEntry) string {
	if history[0].Year != nil {
		return "Timeline from " + models.FormatYear(history[0].Year)
	}
	return "Untitled timeline"
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// ChronicleCount returns the number of archived timelines.
func (s *Store) ChronicleCount() (int, error) {
	return s.db.ChronicleCount()
}
