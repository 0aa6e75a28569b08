package market

import "math/rand"

// Draw is the random source consulted by the acceptance gate.
// *rand.Rand satisfies it.
type Draw interface {
	Intn(n int) int
}

// NewDraw returns a seeded generator. It is not safe for concurrent use;
// each session owns its own.
func NewDraw(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// FixedDraw always returns the same value, clamped into [0,n).
type FixedDraw int

func (d FixedDraw) Intn(n int) int {
	v := int(d)
	if v < 0 {
		return 0
	}
	if n > 0 && v >= n {
		return n - 1
	}
	return v
}

const (
	// AlwaysAccept passes any probability gate above 0%.
	AlwaysAccept = FixedDraw(0)
	// NeverAccept fails any probability gate below 100%.
	NeverAccept = FixedDraw(99)
)
