package arena

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/resolver"
)

type keyed bool

func (k keyed) HasCredential() bool { return bool(k) }

type resolverFunc func(ctx context.Context, req resolver.Request) resolver.Outcome

func (f resolverFunc) Resolve(ctx context.Context, req resolver.Request) resolver.Outcome {
	return f(ctx, req)
}

type memArchiver struct {
	mu    sync.Mutex
	games []*domain.ArenaGame
}

func (m *memArchiver) SaveGame(ctx context.Context, g *domain.ArenaGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, g)
	return nil
}

func applied(s string) resolver.Outcome {
	return resolver.Outcome{Kind: resolver.Applied, Move: chess.MustParseMove(s), Reply: s}
}

// openingPair plays e2e4 for white and e7e5 for black.
func openingPair(ctx context.Context, req resolver.Request) resolver.Outcome {
	if req.Side == chess.White {
		return applied("e2e4")
	}
	return applied("e7e5")
}

func waitEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed")
			}
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event")
		}
	}
}

func waitLoop(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("loop did not exit: %v", err)
	}
}

func TestStartRequiresCredentialAndModels(t *testing.T) {
	c := NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(false))
	if err := c.Start("a", "b", 0); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	c = NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(true))
	if err := c.Start("a", "  ", 0); !errors.Is(err, ErrMissingModel) {
		t.Fatalf("expected ErrMissingModel, got %v", err)
	}
	if c.State() != Idle {
		t.Fatalf("failed start must leave the arena idle, got %s", c.State())
	}
}

func TestFirstMoveThenStopDuringPacing(t *testing.T) {
	c := NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("model-w", "model-b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start("model-w", "model-b", time.Hour); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	ev := waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove })
	if ev.Move != "e2e4" || ev.Ply != 1 || ev.Side != chess.White || ev.Fallback {
		t.Fatalf("unexpected move event %+v", ev)
	}
	if ev.Text != "1. White: e2e4" {
		t.Fatalf("unexpected move line %q", ev.Text)
	}

	snap := c.Snapshot()
	if len(snap.Moves) != 1 || snap.Moves[0] != "e2e4" || snap.Turn != chess.Black {
		t.Fatalf("unexpected snapshot after first move: %+v", snap)
	}

	started := time.Now()
	c.Stop()
	waitLoop(t, c)
	if time.Since(started) > time.Second {
		t.Fatalf("stop did not interrupt the pacing sleep")
	}
	if c.State() != Stopped {
		t.Fatalf("expected stopped, got %s", c.State())
	}
	if got := c.Snapshot().Moves; len(got) != 1 {
		t.Fatalf("no move may be applied after stop, got %v", got)
	}
}

func TestStartFromStoppedResumesGame(t *testing.T) {
	c := NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove })
	id := c.Snapshot().GameID
	c.Stop()
	waitLoop(t, c)

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("resume: %v", err)
	}
	ev := waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove })
	if ev.Move != "e7e5" || ev.Ply != 2 || ev.GameID != id {
		t.Fatalf("unexpected resumed move %+v (game %s)", ev, id)
	}
	c.Stop()
	waitLoop(t, c)
}

func TestOpeningLineFollowsMoves(t *testing.T) {
	line := []string{"e2e4", "e7e5", "g1f3", "b8c6"}
	var mu sync.Mutex
	next := 0
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		mu.Lock()
		i := next
		next++
		mu.Unlock()
		if i < len(line) {
			return applied(line[i])
		}
		<-ctx.Done()
		return resolver.Outcome{Kind: resolver.Fallback, Move: req.LegalMoves[0], Cause: ctx.Err()}
	})
	c := NewController(chess.NewBoard(), res, keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitEvent(t, events, func(e Event) bool {
		return e.Kind == EventLog && strings.HasPrefix(e.Text, "Opening: ")
	})
	if strings.TrimSpace(strings.TrimPrefix(ev.Text, "Opening: ")) == "" {
		t.Fatalf("empty opening line %q", ev.Text)
	}
	waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove && e.Ply == len(line) })
	c.Stop()
	waitLoop(t, c)
	if c.Snapshot().Opening == "" {
		t.Fatalf("snapshot must carry the opening label")
	}
}

func TestStopDuringResolutionDiscardsMove(t *testing.T) {
	entered := make(chan struct{})
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		close(entered)
		<-ctx.Done()
		return resolver.Outcome{Kind: resolver.Fallback, Move: req.LegalMoves[0], Cause: ctx.Err()}
	})
	c := NewController(chess.NewBoard(), res, keyed(true))
	if err := c.Start("w", "b", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	c.Stop()
	waitLoop(t, c)
	if got := c.Snapshot().Moves; len(got) != 0 {
		t.Fatalf("move applied after stop: %v", got)
	}
}

func TestNoLegalMovesEndsGame(t *testing.T) {
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		return resolver.Outcome{Kind: resolver.NoLegalMoves, Cause: resolver.ErrNoLegalMoves}
	})
	c := NewController(chess.NewBoard(), res, keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, events, func(e Event) bool {
		return e.Kind == EventLog && e.Text == "Game stopped - no legal moves available"
	})
	waitLoop(t, c)
	if c.State() != GameOver {
		t.Fatalf("expected game over, got %s", c.State())
	}
	if err := c.Start("w", "b", 0); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("expected ErrGameFinished, got %v", err)
	}
}

func TestResolverPanicEndsGame(t *testing.T) {
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		panic("boom")
	})
	c := NewController(chess.NewBoard(), res, keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitEvent(t, events, func(e Event) bool { return e.Kind == EventError })
	if ev.Text == "" {
		t.Fatalf("error event needs a line")
	}
	waitLoop(t, c)
	if c.State() != GameOver || c.Snapshot().LastError == "" {
		t.Fatalf("panic must end the game with an error recorded: %s", c.State())
	}
}

func TestCheckmateIsArchived(t *testing.T) {
	board := chess.NewBoard()
	for _, s := range []string{"f2f3", "e7e5", "g2g4"} {
		if _, err := board.Apply(board.Position(), chess.MustParseMove(s)); err != nil {
			t.Fatalf("setup %s: %v", s, err)
		}
	}
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		return applied("d8h4")
	})
	arch := &memArchiver{}
	c := NewController(board, res, keyed(true), WithArchiver(arch))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, events, func(e Event) bool { return e.Kind == EventCheck })
	ev := waitEvent(t, events, func(e Event) bool { return e.Kind == EventResult })
	if ev.Text != "Game Over: Black wins by checkmate" || ev.Result != "0-1" {
		t.Fatalf("unexpected result event %+v", ev)
	}
	waitLoop(t, c)

	arch.mu.Lock()
	defer arch.mu.Unlock()
	if len(arch.games) != 1 {
		t.Fatalf("expected one archived game, got %d", len(arch.games))
	}
	g := arch.games[0]
	if g.Result != "0-1" || g.ResultMethod != chess.BlackWinsCheckmate.Code() || len(g.MovesUCI) != 4 || g.BlackModel != "b" {
		t.Fatalf("unexpected archive %+v", g)
	}
}

func TestFallbackIsFlagged(t *testing.T) {
	res := resolverFunc(func(ctx context.Context, req resolver.Request) resolver.Outcome {
		return resolver.Outcome{Kind: resolver.Fallback, Move: chess.MustParseMove("d2d4"), Reply: "pass", Cause: resolver.ErrNoMoveFound}
	})
	c := NewController(chess.NewBoard(), res, keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	failed := waitEvent(t, events, func(e Event) bool { return e.Kind == EventLog && e.Text == "White failed to make valid move: pass" })
	if failed.GameID == "" {
		t.Fatalf("events must carry the game id")
	}
	ev := waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove })
	if !ev.Fallback || ev.Text != "1. White: d2d4 (fallback)" {
		t.Fatalf("unexpected fallback move %+v", ev)
	}
	c.Stop()
	waitLoop(t, c)
	if got := c.Snapshot().Fallbacks[chess.White]; got != 1 {
		t.Fatalf("expected one white fallback, got %d", got)
	}
}

func TestResetRestoresInitialPosition(t *testing.T) {
	c := NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(true))
	events, unsubscribe := c.Bus().Subscribe(128)
	defer unsubscribe()

	if err := c.Start("w", "b", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, events, func(e Event) bool { return e.Kind == EventMove })
	c.Reset()
	waitEvent(t, events, func(e Event) bool { return e.Kind == EventLog && e.Text == "=== Board Reset ===" })
	waitLoop(t, c)

	snap := c.Snapshot()
	if snap.State != Idle || snap.FEN != chess.StartFEN || len(snap.Moves) != 0 || snap.GameID != "" {
		t.Fatalf("unexpected snapshot after reset: %+v", snap)
	}
}

func TestSetPace(t *testing.T) {
	c := NewController(chess.NewBoard(), resolverFunc(openingPair), keyed(true))
	if err := c.SetPace(-time.Second); !errors.Is(err, ErrInvalidPace) {
		t.Fatalf("expected ErrInvalidPace, got %v", err)
	}
	if err := c.SetPace(250 * time.Millisecond); err != nil || c.Pace() != 250*time.Millisecond {
		t.Fatalf("SetPace: %v pace=%v", err, c.Pace())
	}
}

func TestBusDropsForSlowSubscribers(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe(1)
	for i := 0; i < 5; i++ {
		b.Publish(Event{Kind: EventLog})
	}
	if b.Dropped() != 4 {
		t.Fatalf("expected 4 dropped events, got %d", b.Dropped())
	}
	if ev := <-ch; ev.Seq != 1 {
		t.Fatalf("expected first event to be kept, got seq %d", ev.Seq)
	}
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("channel must be closed after unsubscribe")
	}
	b.Close()
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("subscribing to a closed bus yields a closed channel")
	}
}
