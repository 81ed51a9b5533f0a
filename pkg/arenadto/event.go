package arenadto

import "time"

// Event is one arena happening as sent to observers.
type Event struct {
	Seq        uint64    `json:"seq"`
	Kind       string    `json:"kind"`
	GameID     string    `json:"game_id,omitempty"`
	At         time.Time `json:"at"`
	Text       string    `json:"text"`
	State      string    `json:"state"`
	Ply        int       `json:"ply,omitempty"`
	Side       string    `json:"side,omitempty"`
	Model      string    `json:"model,omitempty"`
	Move       string    `json:"move,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	FEN        string    `json:"fen,omitempty"`
	Opening    string    `json:"opening,omitempty"`
	Result     string    `json:"result,omitempty"`
	ResultCode string    `json:"result_code,omitempty"`
}

// Feed message types.
const (
	FeedSnapshot = "snapshot"
	FeedEvent    = "event"
)

// FeedMessage is one websocket frame of the observer feed. A client first
// receives a snapshot, then events in sequence order.
type FeedMessage struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}
