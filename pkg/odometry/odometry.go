// Package odometry holds the wheel position/velocity state shared between the
// encoder sampler and the control loop.
//
// All four values are published together as one immutable Snapshot, so a
// reader always gets a position and a velocity computed at the same tick.
// Writers never take a lock that a reader could hold.
package odometry

import (
	"sync/atomic"

	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

// Snapshot is a consistent copy of both wheels' odometry.  Velocity is in
// revolutions per second, signed by the commanded direction.
type Snapshot struct {
	Ticks    [2]int64   `json:"ticks"`
	Velocity [2]float64 `json:"velocity"`
}

type State struct {
	current atomic.Pointer[Snapshot]
}

func New() *State {
	s := &State{}
	s.current.Store(&Snapshot{})
	return s
}

// Snapshot returns the latest published values.  It never blocks.
func (s *State) Snapshot() Snapshot {
	return *s.current.Load()
}

// WriteTick publishes a new position and velocity for one wheel, leaving the
// other wheel untouched.
func (s *State) WriteTick(side wheel.Side, ticks int64, velocity float64) {
	for {
		old := s.current.Load()
		next := *old
		next.Ticks[side] = ticks
		next.Velocity[side] = velocity
		if s.current.CompareAndSwap(old, &next) {
			return
		}
	}
}
