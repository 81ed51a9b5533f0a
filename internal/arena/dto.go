package arena

import (
	"github.com/park285/chess-arena/pkg/arenadto"
)

func (e Event) DTO() arenadto.Event {
	return arenadto.Event{
		Seq:        e.Seq,
		Kind:       string(e.Kind),
		GameID:     e.GameID,
		At:         e.At,
		Text:       e.Text,
		State:      e.State.String(),
		Ply:        e.Ply,
		Side:       string(e.Side),
		Model:      e.Model,
		Move:       e.Move,
		Fallback:   e.Fallback,
		Reply:      e.Reply,
		FEN:        e.FEN,
		Opening:    e.Opening,
		Result:     e.Result,
		ResultCode: e.ResultCode,
	}
}

func (s Snapshot) DTO() arenadto.Snapshot {
	out := arenadto.Snapshot{
		GameID:      s.GameID,
		State:       s.State.String(),
		Status:      s.Status,
		FEN:         s.FEN,
		Turn:        string(s.Turn),
		InCheck:     s.InCheck,
		MovesUCI:    nonNil(s.Moves),
		MovesSAN:    nonNil(s.SAN),
		WhiteModel:  s.White,
		BlackModel:  s.Black,
		MoveDelayMS: s.Pace.Milliseconds(),
		Result:      s.Result,
		ResultCode:  s.ResultCode,
		ResultText:  s.ResultText,
		Opening:     s.Opening,
		LastError:   s.LastError,
		Board:       s.Board,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		out.StartedAt = &t
	}
	if len(s.Fallbacks) > 0 {
		out.Fallbacks = make(map[string]int, len(s.Fallbacks))
		for side, n := range s.Fallbacks {
			out.Fallbacks[string(side)] = n
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
