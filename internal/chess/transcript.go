package chess

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// PGNHeader holds the tag pairs written ahead of the move text.
type PGNHeader struct {
	Event string
	Site  string
	Date  time.Time
	White string
	Black string
}

// PGN renders the game record as a portable game transcript.
func (b *Board) PGN(h PGNHeader) string {
	san := b.SAN()
	result := b.Result()

	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}
	event := h.Event
	if strings.TrimSpace(event) == "" {
		event = "LLM Chess Arena"
	}
	site := h.Site
	if strings.TrimSpace(site) == "" {
		site = "?"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Event \"%s\"]\n", sanitizePGN(event)))
	sb.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(site)))
	sb.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	sb.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(orUnknown(h.White))))
	sb.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(orUnknown(h.Black))))
	if b.startFEN != "" {
		sb.WriteString("[SetUp \"1\"]\n")
		sb.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", b.startFEN))
	}
	if result.Terminal() {
		sb.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(result.String())))
	}
	sb.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result.PGN()))

	// black to move first from a custom position starts with "1..."
	offset := 0
	if strings.Contains(b.StartFEN(), " b ") {
		offset = 1
		if len(san) > 0 {
			sb.WriteString(fmt.Sprintf("1... %s ", san[0]))
		}
	}
	for i := offset; i < len(san); i += 2 {
		turn := (i+offset)/2 + 1
		sb.WriteString(fmt.Sprintf("%d. %s", turn, san[i]))
		if i+1 < len(san) {
			sb.WriteString(" ")
			sb.WriteString(san[i+1])
		}
		sb.WriteString(" ")
	}
	sb.WriteString(result.PGN())
	return sb.String()
}

// ASCII draws the board with rank 8 on top, upper case for white pieces and
// '.' for empty squares.
func (b *Board) ASCII() string {
	b.mu.RLock()
	board := b.game.Position().Board()
	b.mu.RUnlock()

	var sb strings.Builder
	for rank := nchess.Rank8; rank >= nchess.Rank1; rank-- {
		for file := nchess.FileA; file <= nchess.FileH; file++ {
			if file > nchess.FileA {
				sb.WriteByte(' ')
			}
			sb.WriteByte(pieceLetter(board.Piece(nchess.NewSquare(file, rank))))
		}
		sb.WriteByte('\n')
		if rank == nchess.Rank1 {
			break
		}
	}
	return sb.String()
}

func pieceLetter(p nchess.Piece) byte {
	if p == nchess.NoPiece {
		return '.'
	}
	var c byte
	switch p.Type() {
	case nchess.King:
		c = 'k'
	case nchess.Queen:
		c = 'q'
	case nchess.Rook:
		c = 'r'
	case nchess.Bishop:
		c = 'b'
	case nchess.Knight:
		c = 'n'
	default:
		c = 'p'
	}
	if p.Color() == nchess.White {
		c -= 'a' - 'A'
	}
	return c
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
