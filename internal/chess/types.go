package chess

import (
	nchess "github.com/corentings/chess/v2"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Title is the capitalised side name used in log lines.
func (c Color) Title() string {
	if c == White {
		return "White"
	}
	return "Black"
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

// Position is the board state at one point of the game. It is never mutated
// after construction.
type Position struct {
	FEN        string
	Turn       Color
	Ply        int
	LegalMoves []Move
	InCheck    bool
}

// Result classifies a position. Exactly one value applies at a time.
type Result int

const (
	InProgress Result = iota
	WhiteWinsCheckmate
	BlackWinsCheckmate
	DrawStalemate
	DrawInsufficientMaterial
	Draw75Move
	DrawFivefoldRepetition
)

func (r Result) String() string {
	switch r {
	case WhiteWinsCheckmate:
		return "White wins by checkmate"
	case BlackWinsCheckmate:
		return "Black wins by checkmate"
	case DrawStalemate:
		return "Draw by stalemate"
	case DrawInsufficientMaterial:
		return "Draw by insufficient material"
	case Draw75Move:
		return "Draw by 75-move rule"
	case DrawFivefoldRepetition:
		return "Draw by fivefold repetition"
	default:
		return "Game continues"
	}
}

// Code is a stable machine-readable token for storage and DTOs.
func (r Result) Code() string {
	switch r {
	case WhiteWinsCheckmate:
		return "white_checkmate"
	case BlackWinsCheckmate:
		return "black_checkmate"
	case DrawStalemate:
		return "draw_stalemate"
	case DrawInsufficientMaterial:
		return "draw_insufficient_material"
	case Draw75Move:
		return "draw_75_move"
	case DrawFivefoldRepetition:
		return "draw_fivefold_repetition"
	default:
		return "in_progress"
	}
}

// PGN returns the PGN result token.
func (r Result) PGN() string {
	switch r {
	case WhiteWinsCheckmate:
		return "1-0"
	case BlackWinsCheckmate:
		return "0-1"
	case DrawStalemate, DrawInsufficientMaterial, Draw75Move, DrawFivefoldRepetition:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func (r Result) Terminal() bool { return r != InProgress }
