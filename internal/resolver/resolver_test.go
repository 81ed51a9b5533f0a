package resolver

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/llm"
)

type fakeCompleter struct {
	reply string
	err   error
	got   llm.Request
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.got = req
	return f.reply, f.err
}

func startMoves(t *testing.T) []chess.Move {
	t.Helper()
	return chess.NewBoard().LegalMoves()
}

func TestExtractEveryLegalMoveRoundTrips(t *testing.T) {
	legal := startMoves(t)
	for _, mv := range legal {
		m, err := Extract(mv.String(), legal)
		if err != nil || m.Move != mv {
			t.Fatalf("Extract(%q) = %v, %v", mv, m.Move, err)
		}
	}
}

func TestExtractStages(t *testing.T) {
	legal := startMoves(t)
	cases := []struct {
		text  string
		want  string
		stage Stage
	}{
		{"I think a good move is Nf3 (g1f3).", "g1f3", StagePattern},
		{"  E2E4  ", "e2e4", StagePattern},
		{"e2e5 is bad, e2e4 instead", "e2e4", StagePattern},
		{"move d2-d4!", "d2d4", StageToken},
		{"e2e4q", "e2e4", StageToken},
		{"e2e4e5", "e2e4", StageSubstring},
	}
	for _, tc := range cases {
		m, err := Extract(tc.text, legal)
		if err != nil {
			t.Fatalf("Extract(%q): %v", tc.text, err)
		}
		if m.Move.String() != tc.want || m.Stage != tc.stage {
			t.Fatalf("Extract(%q) = %s/%s, want %s/%s", tc.text, m.Move, m.Stage, tc.want, tc.stage)
		}
	}
}

func TestExtractNeverLeavesLegalList(t *testing.T) {
	legal := []chess.Move{chess.MustParseMove("e2e4")}
	for _, text := range []string{"", "pass", "d2d4", "e7e5 e2e3", "resign", "Nf3", "a7a8q"} {
		m, err := Extract(text, legal)
		if err == nil && m.Move.String() != "e2e4" {
			t.Fatalf("Extract(%q) returned %s outside the legal list", text, m.Move)
		}
		if err != nil && !errors.Is(err, ErrNoMoveFound) {
			t.Fatalf("Extract(%q) unexpected error %v", text, err)
		}
	}
	if _, err := Extract("e2e4", nil); !errors.Is(err, ErrNoMoveFound) {
		t.Fatalf("empty legal list must yield ErrNoMoveFound, got %v", err)
	}
}

// randomReply mixes board characters, promotion letters and separators so
// that every extraction stage gets exercised.
func randomReply(r *rand.Rand) string {
	const alphabet = "abcdefgh12345678qrbnkpxO-=+#!?. ,:\n"
	n := r.Intn(24)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(buf)
}

func TestExtractRandomRepliesStayLegal(t *testing.T) {
	board := chess.NewBoard()
	play := []string{"e2e4", "e7e5", "g1f3", "b8c6"}
	positions := [][]chess.Move{board.LegalMoves()}
	for _, s := range play {
		if _, err := board.Apply(board.Position(), chess.MustParseMove(s)); err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
		positions = append(positions, board.LegalMoves())
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20000; i++ {
		legal := positions[i%len(positions)]
		text := randomReply(r)
		m, err := Extract(text, legal)
		if err != nil {
			if !errors.Is(err, ErrNoMoveFound) {
				t.Fatalf("Extract(%q) unexpected error %v", text, err)
			}
			continue
		}
		if !chess.Contains(legal, m.Move) {
			t.Fatalf("Extract(%q) returned %s outside the legal list", text, m.Move)
		}
	}
}

func FuzzExtract(f *testing.F) {
	for _, seed := range []string{"e2e4", "  E2E4  ", "move d2-d4!", "e2e4e5", "Nf3 (g1f3)", "", "a7a8q"} {
		f.Add(seed)
	}
	legal := chess.NewBoard().LegalMoves()
	f.Fuzz(func(t *testing.T, text string) {
		m, err := Extract(text, legal)
		if err != nil {
			if !errors.Is(err, ErrNoMoveFound) {
				t.Fatalf("Extract(%q) unexpected error %v", text, err)
			}
			return
		}
		if !chess.Contains(legal, m.Move) {
			t.Fatalf("Extract(%q) returned %s outside the legal list", text, m.Move)
		}
	})
}

func TestBuildPromptListsAtMostFifteenMoves(t *testing.T) {
	legal := startMoves(t)
	p := BuildPrompt(chess.StartFEN, chess.White, legal)
	if !strings.Contains(p, "Position: "+chess.StartFEN) || !strings.Contains(p, "Player: White") {
		t.Fatalf("prompt missing header:\n%s", p)
	}
	line := ""
	for _, l := range strings.Split(p, "\n") {
		if strings.HasPrefix(l, "Valid moves: ") {
			line = strings.TrimPrefix(l, "Valid moves: ")
		}
	}
	if n := len(strings.Split(line, ", ")); n != PromptMoveLimit {
		t.Fatalf("expected %d moves in prompt, got %d", PromptMoveLimit, n)
	}
}

func TestResolveApplied(t *testing.T) {
	fc := &fakeCompleter{reply: "e2e4"}
	r := New(fc)
	out := r.Resolve(context.Background(), Request{Model: "m", Position: chess.StartFEN, LegalMoves: startMoves(t), Side: chess.White})
	if out.Kind != Applied || out.Move.String() != "e2e4" || out.Reply != "e2e4" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if fc.got.Model != "m" || fc.got.System != SystemInstruction || fc.got.MaxTokens != 20 || fc.got.Temperature != 0.3 {
		t.Fatalf("unexpected request %+v", fc.got)
	}
}

func TestResolveExtractsBeyondPromptSlice(t *testing.T) {
	legal := startMoves(t)
	last := legal[len(legal)-1]
	r := New(&fakeCompleter{reply: last.String()})
	out := r.Resolve(context.Background(), Request{Model: "m", Position: chess.StartFEN, LegalMoves: legal, Side: chess.White})
	if out.Kind != Applied || out.Move != last {
		t.Fatalf("expected %s applied from the full list, got %+v", last, out)
	}
}

func TestResolveFallbacks(t *testing.T) {
	legal := startMoves(t)
	cases := []struct {
		name  string
		fc    *fakeCompleter
		cause error
	}{
		{"unparseable reply", &fakeCompleter{reply: "pass"}, ErrNoMoveFound},
		{"transport error", &fakeCompleter{err: &llm.StatusError{Code: 500}}, nil},
		{"empty choices", &fakeCompleter{err: llm.ErrEmptyChoices}, llm.ErrEmptyChoices},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(tc.fc)
			r.SetRandomSeed(7)
			out := r.Resolve(context.Background(), Request{Model: "m", Position: chess.StartFEN, LegalMoves: legal, Side: chess.White})
			if out.Kind != Fallback {
				t.Fatalf("expected fallback, got %v", out.Kind)
			}
			if !chess.Contains(legal, out.Move) {
				t.Fatalf("fallback %s outside legal list", out.Move)
			}
			if out.Cause == nil || (tc.cause != nil && !errors.Is(out.Cause, tc.cause)) {
				t.Fatalf("unexpected cause %v", out.Cause)
			}
		})
	}
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResolveTimeoutFallsBack(t *testing.T) {
	legal := startMoves(t)
	r := New(blockingCompleter{}, WithTimeout(50*time.Millisecond))
	start := time.Now()
	out := r.Resolve(context.Background(), Request{Model: "m", Position: chess.StartFEN, LegalMoves: legal, Side: chess.White})
	if out.Kind != Fallback || !chess.Contains(legal, out.Move) {
		t.Fatalf("expected legal fallback, got %+v", out)
	}
	if !errors.Is(out.Cause, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", out.Cause)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not honoured, took %v", elapsed)
	}
}

func TestResolveFallbackIsSeedable(t *testing.T) {
	legal := startMoves(t)
	pick := func() chess.Move {
		r := New(&fakeCompleter{reply: "pass"})
		r.SetRandomSeed(42)
		return r.Resolve(context.Background(), Request{Model: "m", LegalMoves: legal, Side: chess.White}).Move
	}
	if a, b := pick(), pick(); a != b {
		t.Fatalf("same seed picked %s and %s", a, b)
	}
}

func TestResolveNoLegalMoves(t *testing.T) {
	fc := &fakeCompleter{reply: "e2e4"}
	out := New(fc).Resolve(context.Background(), Request{Model: "m", Side: chess.Black})
	if out.Kind != NoLegalMoves || !out.Move.IsZero() || !errors.Is(out.Cause, ErrNoLegalMoves) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if fc.calls != 0 {
		t.Fatalf("no request expected without legal moves")
	}
}
