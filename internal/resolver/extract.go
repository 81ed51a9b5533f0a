package resolver

import (
	"errors"
	"regexp"
	"strings"

	"github.com/park285/chess-arena/internal/chess"
)

var ErrNoMoveFound = errors.New("no legal move found in reply")

// Stage names the extraction step that produced a move.
type Stage string

const (
	StagePattern   Stage = "pattern"
	StageToken     Stage = "token"
	StageSubstring Stage = "substring"
)

// Match is a move found in a free-form reply.
type Match struct {
	Move  chess.Move
	Stage Stage
}

var uciPattern = regexp.MustCompile(`\b([a-h][1-8][a-h][1-8][qrbn]?)\b`)

// Extract finds the first move of legal mentioned in text. The result is
// always a member of legal.
func Extract(text string, legal []chess.Move) (Match, error) {
	if len(legal) == 0 {
		return Match{}, ErrNoMoveFound
	}
	index := make(map[string]chess.Move, len(legal))
	for _, mv := range legal {
		index[mv.String()] = mv
	}

	norm := strings.ToLower(strings.TrimSpace(text))

	for _, m := range uciPattern.FindAllStringSubmatch(norm, -1) {
		if mv, ok := index[m[1]]; ok {
			return Match{Move: mv, Stage: StagePattern}, nil
		}
	}

	for _, word := range strings.Fields(norm) {
		if mv, ok := index[keepBoardChars(word)]; ok {
			return Match{Move: mv, Stage: StageToken}, nil
		}
	}

	for _, mv := range legal {
		if strings.Contains(norm, mv.String()) {
			return Match{Move: mv, Stage: StageSubstring}, nil
		}
	}
	return Match{}, ErrNoMoveFound
}

// keepBoardChars drops everything outside a-h and 0-9.
func keepBoardChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'h') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
