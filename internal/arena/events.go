package arena

import (
	"time"

	"github.com/park285/chess-arena/internal/chess"
)

type EventKind string

const (
	EventStatus EventKind = "status"
	EventLog    EventKind = "log"
	EventMove   EventKind = "move"
	EventCheck  EventKind = "check"
	EventResult EventKind = "result"
	EventError  EventKind = "error"
	EventState  EventKind = "state"
)

// Event is one observable happening of the arena. Text is always a
// human-readable line; the other fields depend on Kind.
type Event struct {
	Seq    uint64
	Kind   EventKind
	GameID string
	At     time.Time
	Text   string
	State  State

	// move events
	Ply      int
	Side     chess.Color
	Model    string
	Move     string
	Fallback bool
	Reply    string
	FEN      string
	Opening  string

	// result events
	Result     string
	ResultCode string
}
