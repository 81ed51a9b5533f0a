package arena

import (
	"sync/atomic"
	"time"
)

// State is the lifecycle of the arena.
type State int32

const (
	Idle State = iota
	Running
	Stopped
	GameOver
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// RunState is the state and pacing shared between the control surface and
// the game loop. Both fields are read without the controller lock.
type RunState struct {
	state atomic.Int32
	pace  atomic.Int64
}

func (r *RunState) State() State { return State(r.state.Load()) }

func (r *RunState) set(s State) { r.state.Store(int32(s)) }

func (r *RunState) Pace() time.Duration { return time.Duration(r.pace.Load()) }

func (r *RunState) SetPace(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.pace.Store(int64(d))
}
