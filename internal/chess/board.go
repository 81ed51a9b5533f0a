package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrIllegalMove   = errors.New("illegal chess move")
	ErrStalePosition = errors.New("position is not the current board position")
)

const (
	// StartFEN is the standard initial position.
	StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

	seventyFiveMovePlies = 150
	fivefoldCount        = 5
)

// Board wraps the rules engine and owns the move record of one game. Reads are
// safe from any goroutine; mutations are expected from a single owner.
type Board struct {
	mu       sync.RWMutex
	startFEN string
	game     *nchess.Game
	moves    []Move
	keys     []string
	current  *Position
}

// NewBoard returns a board at the standard initial position.
func NewBoard() *Board {
	b, err := NewBoardFromFEN("")
	if err != nil {
		// the empty FEN never fails to load
		panic(err)
	}
	return b
}

// NewBoardFromFEN returns a board starting from fen. Reset returns to this
// position. An empty fen means the standard initial position.
func NewBoardFromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	game, err := newGame(fen)
	if err != nil {
		return nil, err
	}
	b := &Board{startFEN: fen}
	b.load(game)
	return b, nil
}

func newGame(fen string) (*nchess.Game, error) {
	if fen == "" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}

func (b *Board) load(game *nchess.Game) {
	b.game = game
	b.moves = nil
	b.keys = []string{repetitionKey(game.Position(), game.FEN())}
	b.current = nil
}

// Reset discards the history and returns to the starting position.
func (b *Board) Reset() {
	game, err := newGame(b.startFEN)
	if err != nil {
		// startFEN was validated on construction
		panic(err)
	}
	b.mu.Lock()
	b.load(game)
	b.mu.Unlock()
}

// Position returns the current position.
func (b *Board) Position() Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked()
}

func (b *Board) positionLocked() Position {
	if b.current == nil {
		pos := b.game.Position()
		p := Position{
			FEN:        b.game.FEN(),
			Turn:       colorFrom(pos.Turn()),
			Ply:        len(b.moves),
			LegalMoves: legalMoves(pos),
			InCheck:    inCheck(b.game, pos),
		}
		b.current = &p
	}
	p := *b.current
	p.LegalMoves = append([]Move(nil), b.current.LegalMoves...)
	return p
}

// LegalMoves returns the legal moves of the current position in the rules
// engine's generation order.
func (b *Board) LegalMoves() []Move {
	return b.Position().LegalMoves
}

// AtStart reports whether no move has been applied since the last reset.
func (b *Board) AtStart() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.moves) == 0
}

// Apply plays mv on pos, which must be the current position, and returns the
// successor position. The board is unchanged on error.
func (b *Board) Apply(pos Position, mv Move) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.positionLocked()
	if pos.FEN != cur.FEN || pos.Ply != cur.Ply {
		return Position{}, ErrStalePosition
	}
	if !Contains(cur.LegalMoves, mv) {
		return Position{}, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	if err := b.game.PushNotationMove(mv.String(), nchess.UCINotation{}, nil); err != nil {
		return Position{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	b.moves = append(b.moves, mv)
	b.keys = append(b.keys, repetitionKey(b.game.Position(), b.game.FEN()))
	b.current = nil
	return b.positionLocked(), nil
}

// InCheck reports whether the side to move is in check.
func (b *Board) InCheck() bool {
	return b.Position().InCheck
}

// IsTerminal reports whether the game has ended under any rule Result knows.
func (b *Board) IsTerminal() bool {
	return b.Result().Terminal()
}

// Result classifies the current position. Checks run in a fixed order and the
// first match wins: checkmate, stalemate, insufficient material, 75-move rule,
// fivefold repetition.
func (b *Board) Result() Result {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pos := b.game.Position()
	switch pos.Status() {
	case nchess.Checkmate:
		if pos.Turn() == nchess.White {
			return BlackWinsCheckmate
		}
		return WhiteWinsCheckmate
	case nchess.Stalemate:
		return DrawStalemate
	}
	if insufficientMaterial(pos.Board()) {
		return DrawInsufficientMaterial
	}
	if halfMoveClock(b.game.FEN()) >= seventyFiveMovePlies {
		return Draw75Move
	}
	if b.repetitionsLocked() >= fivefoldCount {
		return DrawFivefoldRepetition
	}
	return InProgress
}

// Moves returns the game record: every applied move in order.
func (b *Board) Moves() []Move {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Move(nil), b.moves...)
}

// StartFEN returns the position the board resets to.
func (b *Board) StartFEN() string {
	if b.startFEN == "" {
		return StartFEN
	}
	return b.startFEN
}

// ecoBook parses the embedded ECO book once.
var ecoBook = sync.OnceValue(opening.NewBookECO)

// Opening returns the ECO code and title of the line played so far.
func (b *Board) Opening() (string, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.moves) == 0 || b.startFEN != "" {
		return "", ""
	}
	book := ecoBook()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(b.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// SAN renders the game record in standard algebraic notation.
func (b *Board) SAN() []string {
	b.mu.RLock()
	moves := append([]Move(nil), b.moves...)
	b.mu.RUnlock()

	game, err := newGame(b.startFEN)
	if err != nil {
		return nil
	}
	notationUCI := nchess.UCINotation{}
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		pos := game.Position()
		decoded, err := notationUCI.Decode(pos, mv.String())
		if err != nil {
			break
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(pos, decoded))
		if err := game.Move(decoded, nil); err != nil {
			break
		}
	}
	return out
}

func (b *Board) repetitionsLocked() int {
	if len(b.keys) == 0 {
		return 0
	}
	last := b.keys[len(b.keys)-1]
	n := 0
	for _, k := range b.keys {
		if k == last {
			n++
		}
	}
	return n
}

func legalMoves(pos *nchess.Position) []Move {
	valid := pos.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		parsed, err := ParseMove(mv.String())
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

func inCheck(game *nchess.Game, pos *nchess.Position) bool {
	if pos.Status() == nchess.Checkmate {
		return true
	}
	moves := game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(nchess.Check)
}

// repetitionKey keeps placement, side to move, castling rights and en passant
// square; the clocks do not take part in repetition. The en passant square
// counts only when a pawn can actually capture onto it.
func repetitionKey(pos *nchess.Position, fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	if len(fields) == 4 && fields[3] != "-" && !canCaptureEnPassant(pos, fields[3]) {
		fields[3] = "-"
	}
	return strings.Join(fields, " ")
}

func canCaptureEnPassant(pos *nchess.Position, square string) bool {
	board := pos.Board()
	for _, mv := range pos.ValidMoves() {
		if mv.S2().String() == square && board.Piece(mv.S1()).Type() == nchess.Pawn {
			return true
		}
	}
	return false
}

func halfMoveClock(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// insufficientMaterial reports a dead position for both sides: bare kings,
// a single minor piece, or only bishops that all stand on one square color.
func insufficientMaterial(board *nchess.Board) bool {
	knights := 0
	var bishopColors [2]int
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			switch piece.Type() {
			case nchess.King:
			case nchess.Knight:
				knights++
			case nchess.Bishop:
				bishopColors[(int(file)+int(rank))%2]++
			default:
				return false
			}
		}
	}
	bishops := bishopColors[0] + bishopColors[1]
	if knights+bishops <= 1 {
		return true
	}
	return knights == 0 && (bishopColors[0] == 0 || bishopColors[1] == 0)
}
