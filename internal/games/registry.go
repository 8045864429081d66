package games

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/timeline/internal/models"
	"github.com/iammorganparry/timeline/internal/timeline"
)

// ErrNotFound is returned for an unknown game id.
var ErrNotFound = errors.New("game not found")

// Game is one browser session's timeline.
type Game struct {
	ID        string
	CreatedAt time.Time
	Session   *timeline.Session

	mu       sync.Mutex
	lastSeen time.Time
}

func (g *Game) touch(now time.Time) {
	g.mu.Lock()
	g.lastSeen = now
	g.mu.Unlock()
}

func (g *Game) idleSince() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}

// View is a game snapshot as returned by the API.
type View struct {
	ID string `json:"id"`
	timeline.Snapshot
}

// Registry owns every live game and runs narrator round trips for them.
type Registry struct {
	mu       sync.RWMutex
	games    map[string]*Game
	narrator timeline.Narrator
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	opts     []timeline.Option
}

// NewRegistry creates a registry. timeout bounds each narrator call.
func NewRegistry(narrator timeline.Narrator, timeout time.Duration, logger *slog.Logger, opts ...timeline.Option) *Registry {
	return &Registry{
		games:    make(map[string]*Game),
		narrator: narrator,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		opts:     opts,
	}
}

// Create starts a new game in the year selection phase.
func (r *Registry) Create() View {
	now := r.now()
	g := &Game{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Session:   timeline.NewSession(r.opts...),
		lastSeen:  now,
	}

	r.mu.Lock()
	r.games[g.ID] = g
	r.mu.Unlock()

	r.logger.Info("game created", "game_id", g.ID)
	return view(g)
}

// Get returns a game by id.
func (r *Registry) Get(id string) (*Game, error) {
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	g.touch(r.now())
	return g, nil
}

// View returns the current snapshot of a game.
func (r *Registry) View(id string) (View, error) {
	g, err := r.Get(id)
	if err != nil {
		return View{}, err
	}
	return view(g), nil
}

// Delete discards a game. Outstanding narrator calls finish against the
// detached session and are dropped.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[id]; !ok {
		return ErrNotFound
	}
	delete(r.games, id)
	r.logger.Info("game deleted", "game_id", id)
	return nil
}

// Len returns the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Prune drops games idle for longer than maxIdle and returns how many were removed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, g := range r.games {
		if g.idleSince().Before(cutoff) {
			delete(r.games, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("pruned idle games", "removed", removed, "remaining", len(r.games))
	}
	return removed
}

// SubmitYear validates the year and fetches candidate events.
func (r *Registry) SubmitYear(ctx context.Context, id, year string, era models.Era) (View, error) {
	return r.do(ctx, id, func(s *timeline.Session) (timeline.Request, error) {
		return s.SubmitYear(year, era)
	})
}

// SelectEvent starts the timeline from one of the offered events.
func (r *Registry) SelectEvent(ctx context.Context, id, event string) (View, error) {
	return r.do(ctx, id, func(s *timeline.Session) (timeline.Request, error) {
		return s.SelectEvent(event)
	})
}

// Choose advances the timeline with one of the offered choices.
func (r *Registry) Choose(ctx context.Context, id, choice string) (View, error) {
	return r.do(ctx, id, func(s *timeline.Session) (timeline.Request, error) {
		return s.Choose(choice)
	})
}

// Reset returns a game to its initial state.
func (r *Registry) Reset(id string) (View, error) {
	g, err := r.Get(id)
	if err != nil {
		return View{}, err
	}
	g.Session.Reset()
	r.logger.Info("game reset", "game_id", id)
	return view(g), nil
}

// do issues a command and, when it yields a request, runs the narrator call
// and applies the result. The call is detached from the HTTP request's
// cancellation so that a dropped connection cannot strand the in-flight slot.
func (r *Registry) do(ctx context.Context, id string, issue func(*timeline.Session) (timeline.Request, error)) (View, error) {
	g, err := r.Get(id)
	if err != nil {
		return View{}, err
	}

	req, err := issue(g.Session)
	if err != nil {
		return view(g), err
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := r.now()
	res := timeline.Execute(callCtx, r.narrator, req)
	logger := r.logger.With("game_id", id, "request", req.Kind.String(), "token", uint64(req.Token))

	err = g.Session.Apply(res)
	switch {
	case errors.Is(err, timeline.ErrStaleResult):
		logger.Info("discarded stale narrator result")
		return view(g), nil
	case err != nil:
		logger.Error("narrator request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return view(g), err
	}
	logger.Info("narrator request applied", "duration_ms", time.Since(start).Milliseconds())
	return view(g), nil
}

func view(g *Game) View {
	return View{ID: g.ID, Snapshot: g.Session.Snapshot()}
}
