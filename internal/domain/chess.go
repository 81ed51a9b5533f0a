package domain

import "time"

// ArenaGame is a finished model-versus-model game as archived.
type ArenaGame struct {
	ID             int64
	GameUUID       string
	WhiteModel     string
	BlackModel     string
	Result         string // "1-0", "0-1", "1/2-1/2" or "*"
	ResultMethod   string // e.g. "white_checkmate", "draw_stalemate"
	ResultText     string
	StartFEN       string
	FinalFEN       string
	MovesUCI       []string
	MovesSAN       []string
	PGN            string
	OpeningECO     string
	OpeningName    string
	WhiteFallbacks int
	BlackFallbacks int
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
}

// ModelRecord aggregates archived results for one model.
type ModelRecord struct {
	Model     string
	Games     int
	Wins      int
	Losses    int
	Draws     int
	Fallbacks int
}
