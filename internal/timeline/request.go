package timeline

import (
	"context"
	"fmt"

	"github.com/iammorganparry/timeline/internal/models"
)

// Narrator is the generative-text service the state machine consults.
type Narrator interface {
	InitialEvents(ctx context.Context, year int) ([]string, error)
	StartGame(ctx context.Context, event string, year int) (*models.Turn, error)
	AdvanceTimeline(ctx context.Context, history, choice string, lastYear int) (*models.Turn, error)
}

// Token identifies one issued request. The zero token is never issued.
type Token uint64

// RequestKind selects which narrator call a Request stands for.
type RequestKind int

const (
	RequestInitialEvents RequestKind = iota + 1
	RequestStartGame
	RequestAdvance
)

func (k RequestKind) String() string {
	switch k {
	case RequestInitialEvents:
		return "initial_events"
	case RequestStartGame:
		return "start_game"
	case RequestAdvance:
		return "advance_timeline"
	}
	return fmt.Sprintf("request(%d)", int(k))
}

// Request is a narrator call issued by the session. It occupies the session's
// in-flight slot until a Result carrying the same Token is applied.
type Request struct {
	Token Token
	Kind  RequestKind

	// Year is the selected year for initial events and game start, and the
	// last known year when advancing.
	Year    int
	Event   string
	Choice  string
	History string
}

// Result is the single outcome of a Request: either a payload or Err.
type Result struct {
	Token  Token
	Kind   RequestKind
	Events []string
	Turn   *models.Turn
	Err    error
}

// Execute performs req against n and wraps the outcome as a Result.
// It never touches session state, so it is safe to run without holding any lock.
func Execute(ctx context.Context, n Narrator, req Request) Result {
	res := Result{Token: req.Token, Kind: req.Kind}
	switch req.Kind {
	case RequestInitialEvents:
		res.Events, res.Err = n.InitialEvents(ctx, req.Year)
	case RequestStartGame:
		res.Turn, res.Err = n.StartGame(ctx, req.Event, req.Year)
	case RequestAdvance:
		res.Turn, res.Err = n.AdvanceTimeline(ctx, req.History, req.Choice, req.Year)
	default:
		res.Err = fmt.Errorf("unknown request kind %d", req.Kind)
	}
	return res
}
