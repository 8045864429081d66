package games

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iammorganparry/timeline/internal/models"
	"github.com/iammorganparry/timeline/internal/timeline"
)

type stubNarrator struct {
	mu     sync.Mutex
	events []string
	turn   *models.Turn
	err    error
	block  chan struct{}
}

func (n *stubNarrator) wait(ctx context.Context) error {
	if n.block == nil {
		return nil
	}
	select {
	case <-n.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *stubNarrator) InitialEvents(ctx context.Context, year int) ([]string, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events, n.err
}

func (n *stubNarrator) StartGame(ctx context.Context, event string, year int) (*models.Turn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.turn, n.err
}

func (n *stubNarrator) AdvanceTimeline(ctx context.Context, history, choice string, lastYear int) (*models.Turn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.turn, n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRegistry(n timeline.Narrator) *Registry {
	fixed := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return NewRegistry(n, time.Second, testLogger(), timeline.WithClock(fixed))
}

func TestCreateAndView(t *testing.T) {
	r := newTestRegistry(&stubNarrator{})

	v := r.Create()
	if v.ID == "" {
		t.Fatal("expected an id")
	}
	if v.Phase != timeline.PhaseSelectingYear {
		t.Errorf("phase = %s", v.Phase)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}

	got, err := r.View(v.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got.ID != v.ID {
		t.Errorf("id = %q, want %q", got.ID, v.ID)
	}
}

func TestUnknownGame(t *testing.T) {
	r := newTestRegistry(&stubNarrator{})
	ctx := context.Background()

	if _, err := r.View("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("View err = %v", err)
	}
	if _, err := r.SubmitYear(ctx, "missing", "1969", models.EraAD); !errors.Is(err, ErrNotFound) {
		t.Errorf("SubmitYear err = %v", err)
	}
	if _, err := r.Reset("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reset err = %v", err)
	}
	if err := r.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestFullGame(t *testing.T) {
	n := &stubNarrator{events: []string{"Apollo 11 lands", "Woodstock"}}
	r := newTestRegistry(n)
	ctx := context.Background()
	id := r.Create().ID

	v, err := r.SubmitYear(ctx, id, "1969", models.EraAD)
	if err != nil {
		t.Fatalf("submit year: %v", err)
	}
	if v.Phase != timeline.PhaseSelectingEvent || len(v.InitialEvents) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}

	n.turn = &models.Turn{Narrative: "Armstrong walks.", Year: 1969, Choices: []string{"Go to Mars"}}
	v, err = r.SelectEvent(ctx, id, "Apollo 11 lands")
	if err != nil {
		t.Fatalf("select event: %v", err)
	}
	if v.Phase != timeline.PhaseInGame || len(v.History) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}

	n.turn = &models.Turn{Narrative: "Mars base opens.", Year: 1985}
	v, err = r.Choose(ctx, id, "Go to Mars")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if v.Phase != timeline.PhaseGameOver || len(v.History) != 3 {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.History[1].Choice == nil || *v.History[1].Choice != "Go to Mars" {
		t.Errorf("choice not attached: %+v", v.History[1])
	}
}

func TestNarratorFailureReturnsView(t *testing.T) {
	n := &stubNarrator{err: errors.New("ollama down")}
	r := newTestRegistry(n)
	id := r.Create().ID

	v, err := r.SubmitYear(context.Background(), id, "1969", models.EraAD)
	if !errors.Is(err, timeline.ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
	if v.Phase != timeline.PhaseSelectingYear || v.Loading || v.Error == "" {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestFailedGameRejectsCommandsUntilReset(t *testing.T) {
	n := &stubNarrator{err: errors.New("ollama down")}
	r := newTestRegistry(n)
	id := r.Create().ID
	ctx := context.Background()

	if _, err := r.SubmitYear(ctx, id, "1969", models.EraAD); !errors.Is(err, timeline.ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}

	n.mu.Lock()
	n.err = nil
	n.events = []string{"Apollo 11 lands"}
	n.mu.Unlock()

	v, err := r.SubmitYear(ctx, id, "1969", models.EraAD)
	if !errors.Is(err, timeline.ErrFailed) {
		t.Fatalf("retry err = %v, want ErrFailed", err)
	}
	if !v.Failed || v.Phase != timeline.PhaseSelectingYear {
		t.Errorf("unexpected view %+v", v)
	}

	if _, err := r.Reset(id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	v, err = r.SubmitYear(ctx, id, "1969", models.EraAD)
	if err != nil {
		t.Fatalf("submit after reset: %v", err)
	}
	if v.Failed || v.Phase != timeline.PhaseSelectingEvent {
		t.Errorf("unexpected view after reset %+v", v)
	}
}

func TestValidationErrorDoesNotCallNarrator(t *testing.T) {
	r := newTestRegistry(&stubNarrator{err: errors.New("should not be called")})
	id := r.Create().ID

	v, err := r.SubmitYear(context.Background(), id, "0", models.EraAD)
	if !timeline.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if v.Error == "" {
		t.Error("expected the validation message in the view")
	}
}

func TestBusyWhileNarratorRuns(t *testing.T) {
	n := &stubNarrator{events: []string{"e"}, block: make(chan struct{})}
	r := newTestRegistry(n)
	id := r.Create().ID

	done := make(chan error, 1)
	go func() {
		_, err := r.SubmitYear(context.Background(), id, "1969", models.EraAD)
		done <- err
	}()

	g, _ := r.Get(id)
	deadline := time.Now().Add(time.Second)
	for !g.Session.Loading() {
		if time.Now().After(deadline) {
			t.Fatal("request never became in-flight")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := r.SubmitYear(context.Background(), id, "1970", models.EraAD); !errors.Is(err, timeline.ErrBusy) {
		t.Errorf("second submit err = %v, want ErrBusy", err)
	}

	close(n.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

func TestResetDropsLateResult(t *testing.T) {
	n := &stubNarrator{events: []string{"late"}, block: make(chan struct{})}
	r := newTestRegistry(n)
	id := r.Create().ID

	done := make(chan error, 1)
	go func() {
		_, err := r.SubmitYear(context.Background(), id, "1969", models.EraAD)
		done <- err
	}()

	g, _ := r.Get(id)
	for !g.Session.Loading() {
		time.Sleep(time.Millisecond)
	}

	v, err := r.Reset(id)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if v.Loading || v.Phase != timeline.PhaseSelectingYear {
		t.Errorf("unexpected view after reset %+v", v)
	}

	close(n.block)
	if err := <-done; err != nil {
		t.Fatalf("late submit returned %v, want nil", err)
	}
	if v, _ := r.View(id); v.Phase != timeline.PhaseSelectingYear || len(v.InitialEvents) != 0 {
		t.Errorf("late result leaked into reset game: %+v", v)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	r := newTestRegistry(&stubNarrator{})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := r.Create().ID
	now = now.Add(2 * time.Hour)
	fresh := r.Create().ID
	doomed := r.Create().ID

	if err := r.Delete(doomed); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if removed := r.Prune(time.Hour); removed != 1 {
		t.Errorf("pruned %d, want 1", removed)
	}
	if _, err := r.Get(stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale game still present: %v", err)
	}
	if _, err := r.Get(fresh); err != nil {
		t.Errorf("fresh game pruned: %v", err)
	}
}
