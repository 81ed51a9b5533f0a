package resolver

import (
	"fmt"
	"strings"

	"github.com/park285/chess-arena/internal/chess"
)

const (
	// PromptMoveLimit caps how many legal moves the prompt lists.
	PromptMoveLimit = 15

	SystemInstruction = "You are a chess engine. You must respond with ONLY a valid chess move in UCI notation. " +
		"Examples: e2e4, g1f3, d7d5, a7a8q. Respond with exactly 4 or 5 characters, nothing else."
)

// StopSequences cut the reply at the first newline, space or period.
var StopSequences = []string{"\n", " ", "."}

// BuildPrompt renders the user prompt for the side to move. Only the first
// PromptMoveLimit legal moves are listed.
func BuildPrompt(fen string, side chess.Color, legal []chess.Move) string {
	shown := legal
	if len(shown) > PromptMoveLimit {
		shown = shown[:PromptMoveLimit]
	}
	return fmt.Sprintf("Position: %s\nPlayer: %s\n\nValid moves: %s\n\nPick ONE move from the valid moves list above. Reply with exactly 4-5 characters only:",
		fen, side.Title(), strings.Join(chess.MoveStrings(shown), ", "))
}
