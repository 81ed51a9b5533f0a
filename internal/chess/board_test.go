package chess

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func play(t *testing.T, b *Board, moves ...string) Position {
	t.Helper()
	var pos Position
	for _, s := range moves {
		var err error
		pos, err = b.Apply(b.Position(), MustParseMove(s))
		if err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
	}
	return pos
}

func TestApplyEveryLegalMoveFlipsTurn(t *testing.T) {
	b := NewBoard()
	start := b.Position()
	if start.Turn != White || len(start.LegalMoves) != 20 {
		t.Fatalf("unexpected start position: turn=%s legal=%d", start.Turn, len(start.LegalMoves))
	}
	for _, mv := range start.LegalMoves {
		b.Reset()
		next, err := b.Apply(b.Position(), mv)
		if err != nil {
			t.Fatalf("apply %s: %v", mv, err)
		}
		if next.Turn != Black {
			t.Fatalf("after %s expected black to move, got %s", mv, next.Turn)
		}
		if next.Ply != 1 {
			t.Fatalf("after %s expected ply 1, got %d", mv, next.Ply)
		}
	}
}

func TestApplyIllegalMoveLeavesBoardUnchanged(t *testing.T) {
	b := NewBoard()
	before := b.Position()
	for _, s := range []string{"e2e5", "e7e5", "a1a8", "e1g1"} {
		_, err := b.Apply(before, MustParseMove(s))
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%s: expected ErrIllegalMove, got %v", s, err)
		}
	}
	after := b.Position()
	if after.FEN != before.FEN || len(b.Moves()) != 0 {
		t.Fatalf("board changed after rejected moves: %s", after.FEN)
	}
}

func TestApplyRejectsStalePosition(t *testing.T) {
	b := NewBoard()
	stale := b.Position()
	play(t, b, "e2e4")
	if _, err := b.Apply(stale, MustParseMove("d2d4")); !errors.Is(err, ErrStalePosition) {
		t.Fatalf("expected ErrStalePosition, got %v", err)
	}
	if got := MoveStrings(b.Moves()); len(got) != 1 || got[0] != "e2e4" {
		t.Fatalf("unexpected record: %v", got)
	}
}

func TestResultCheckmate(t *testing.T) {
	b := NewBoard()
	play(t, b, "f2f3", "e7e5", "g2g4", "d8h4")
	if got := b.Result(); got != BlackWinsCheckmate {
		t.Fatalf("expected black checkmate, got %v", got)
	}
	if !b.IsTerminal() || !b.InCheck() {
		t.Fatalf("mated position must be terminal and in check")
	}
	if len(b.LegalMoves()) != 0 {
		t.Fatalf("mated side should have no legal moves")
	}
	if got := b.Result().String(); got != "Black wins by checkmate" {
		t.Fatalf("unexpected result text %q", got)
	}
}

func TestResultFromPositions(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		want Result
	}{
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", DrawStalemate},
		{"bare kings", "8/8/8/4k3/8/8/8/4K3 w - - 0 1", DrawInsufficientMaterial},
		{"single knight", "8/8/8/4k3/8/8/8/4KN2 w - - 0 1", DrawInsufficientMaterial},
		{"same colored bishops", "8/8/8/3bk3/8/8/8/4KB2 w - - 0 1", DrawInsufficientMaterial},
		{"seventy five moves", "8/8/8/4k3/8/8/8/R3K3 w - - 150 90", Draw75Move},
		{"stalemate beats clock", "7k/5Q2/6K1/8/8/8/8/8 b - - 150 90", DrawStalemate},
		{"rook keeps it going", "8/8/8/4k3/8/8/8/R3K3 w - - 10 40", InProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewBoardFromFEN(tc.fen)
			if err != nil {
				t.Fatalf("NewBoardFromFEN: %v", err)
			}
			if got := b.Result(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if b.IsTerminal() != tc.want.Terminal() {
				t.Fatalf("IsTerminal disagrees with Result")
			}
		})
	}
}

func TestResultFivefoldRepetition(t *testing.T) {
	b := NewBoard()
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for i := 0; i < 3; i++ {
		play(t, b, shuffle...)
	}
	if got := b.Result(); got != InProgress {
		t.Fatalf("fourfold position must still be in progress, got %v", got)
	}
	play(t, b, shuffle...)
	if got := b.Result(); got != DrawFivefoldRepetition {
		t.Fatalf("expected fivefold repetition, got %v", got)
	}
	if len(b.Moves()) != 16 {
		t.Fatalf("expected 16 plies in record, got %d", len(b.Moves()))
	}
}

func TestFivefoldRepetitionAfterDoublePawnPush(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4")
	shuffle := []string{"g8f6", "g1f3", "f6g8", "f3g1"}
	for i := 0; i < 3; i++ {
		play(t, b, shuffle...)
	}
	if got := b.Result(); got != InProgress {
		t.Fatalf("fourfold position must still be in progress, got %v", got)
	}
	play(t, b, shuffle...)
	if got := b.Result(); got != DrawFivefoldRepetition {
		t.Fatalf("expected fivefold repetition, got %v", got)
	}
}

func TestRepetitionKeyEnPassantSquare(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4")
	if key := b.keys[len(b.keys)-1]; !strings.HasSuffix(key, " b KQkq -") {
		t.Fatalf("uncapturable en passant square must be dropped, got %q", key)
	}
	play(t, b, "a7a6", "e4e5", "d7d5")
	if key := b.keys[len(b.keys)-1]; !strings.HasSuffix(key, " w KQkq d6") {
		t.Fatalf("capturable en passant square must be kept, got %q", key)
	}
}

func TestResetRestoresStart(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4", "e7e5")
	b.Reset()
	if !b.AtStart() || b.Position().FEN != StartFEN {
		t.Fatalf("reset did not restore the initial position: %s", b.Position().FEN)
	}
}

func TestPGNAndSAN(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4", "e7e5", "g1f3")
	san := b.SAN()
	if strings.Join(san, " ") != "e4 e5 Nf3" {
		t.Fatalf("unexpected SAN: %v", san)
	}
	pgn := b.PGN(PGNHeader{White: "model-a", Black: "model-b", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})
	for _, want := range []string{`[White "model-a"]`, `[Date "2026.01.02"]`, `[Result "*"]`, "1. e4 e5 2. Nf3 *"} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
}

func TestASCII(t *testing.T) {
	b := NewBoard()
	lines := strings.Split(strings.TrimSpace(b.ASCII()), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 ranks, got %d", len(lines))
	}
	if lines[0] != "r n b q k b n r" || lines[7] != "R N B Q K B N R" {
		t.Fatalf("unexpected diagram:\n%s", b.ASCII())
	}
}

func TestParseMove(t *testing.T) {
	for _, ok := range []string{"e2e4", "a7a8q", "h2h1n"} {
		mv, err := ParseMove(ok)
		if err != nil || mv.String() != ok {
			t.Fatalf("ParseMove(%q) = %v, %v", ok, mv, err)
		}
	}
	for _, bad := range []string{"", "e2", "e9e4", "E2E4", "e7e8k", "e2e4qq"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrInvalidNotation) {
			t.Fatalf("ParseMove(%q) expected ErrInvalidNotation, got %v", bad, err)
		}
	}
}
