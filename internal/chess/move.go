package chess

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidNotation = errors.New("invalid uci move notation")

// Move is a move in UCI coordinate form: origin square, destination square and
// an optional promotion piece letter. Two moves are equal when their String
// forms are equal.
type Move struct {
	From      string
	To        string
	Promotion byte
}

// ParseMove accepts strict lower-case UCI text such as "e2e4" or "a7a8q".
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	if !isSquare(s[0:2]) || !isSquare(s[2:4]) {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	mv := Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return Move{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
		}
		mv.Promotion = s[4]
	}
	return mv, nil
}

// MustParseMove is ParseMove for literals in tests and tables.
func MustParseMove(s string) Move {
	mv, err := ParseMove(s)
	if err != nil {
		panic(err)
	}
	return mv
}

func (m Move) String() string {
	if m.Promotion == 0 {
		return m.From + m.To
	}
	return m.From + m.To + string(m.Promotion)
}

func (m Move) IsZero() bool { return m.From == "" && m.To == "" }

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// MoveStrings renders moves in order.
func MoveStrings(moves []Move) []string {
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// Contains reports whether mv is a member of moves by exact notation.
func Contains(moves []Move, mv Move) bool {
	want := mv.String()
	for _, m := range moves {
		if m.String() == want {
			return true
		}
	}
	return false
}
