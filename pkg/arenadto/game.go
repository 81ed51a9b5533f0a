package arenadto

import "time"

// Snapshot is the observable state of the arena.
type Snapshot struct {
	GameID      string         `json:"game_id,omitempty"`
	State       string         `json:"state"`
	Status      string         `json:"status"`
	FEN         string         `json:"fen"`
	Turn        string         `json:"turn"`
	InCheck     bool           `json:"in_check"`
	MovesUCI    []string       `json:"moves_uci"`
	MovesSAN    []string       `json:"moves_san"`
	WhiteModel  string         `json:"white_model,omitempty"`
	BlackModel  string         `json:"black_model,omitempty"`
	MoveDelayMS int64          `json:"move_delay_ms"`
	Result      string         `json:"result"`
	ResultCode  string         `json:"result_code"`
	ResultText  string         `json:"result_text"`
	Opening     string         `json:"opening,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	Board       string         `json:"board"`
	Fallbacks   map[string]int `json:"fallbacks,omitempty"`
}

// ArchivedGame is a finished game from the archive.
type ArchivedGame struct {
	ID             int64     `json:"id"`
	GameID         string    `json:"game_id"`
	WhiteModel     string    `json:"white_model"`
	BlackModel     string    `json:"black_model"`
	Result         string    `json:"result"`
	ResultMethod   string    `json:"result_method"`
	ResultText     string    `json:"result_text"`
	MovesUCI       []string  `json:"moves_uci"`
	PGN            string    `json:"pgn"`
	Opening        string    `json:"opening,omitempty"`
	WhiteFallbacks int       `json:"white_fallbacks"`
	BlackFallbacks int       `json:"black_fallbacks"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	DurationMS     int64     `json:"duration_ms"`
}

type ModelRecord struct {
	Model     string `json:"model"`
	Games     int    `json:"games"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	Draws     int    `json:"draws"`
	Fallbacks int    `json:"fallbacks"`
}
