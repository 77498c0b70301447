package wheel

import "fmt"

// Side indexes the per-wheel arrays used throughout the controller.
type Side int

const (
	Left Side = iota
	Right
)

// Both lists the sides in sampling order.
var Both = [2]Side{Left, Right}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Sign returns -1, 0 or +1.
func Sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Pair holds one value per wheel.  It marshals as {left: ..., right: ...}.
type Pair[T any] struct {
	Left  T `yaml:"left" json:"left"`
	Right T `yaml:"right" json:"right"`
}

func (p Pair[T]) Get(s Side) T {
	if s == Right {
		return p.Right
	}
	return p.Left
}

func (p *Pair[T]) Set(s Side, v T) {
	if s == Right {
		p.Right = v
		return
	}
	p.Left = v
}
