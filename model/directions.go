package model

import (
	"sync"
	"time"

	"github.com/timewinder-dev/onelane/bridge"
	"golang.org/x/exp/rand"
)

// DirectionSource assigns each vehicle its direction before it starts.
type DirectionSource interface {
	Direction(id int) bridge.Direction
}

// RandomDirections draws directions from a seeded generator and is safe
// for concurrent use.
type RandomDirections struct {
	*rand.Rand
	mtx sync.Mutex
}

// NewRandomDirections uses the clock when seed is zero.
func NewRandomDirections(seed uint64) *RandomDirections {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomDirections{Rand: rand.New(rand.NewSource(seed))}
}

func (r *RandomDirections) Direction(int) bridge.Direction {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return bridge.Directions[r.Intn(2)]
}

type FixedDirections []bridge.Direction

func (f FixedDirections) Direction(id int) bridge.Direction {
	return f[id]
}

// Assign draws one direction per vehicle.
func Assign(src DirectionSource, n int) []bridge.Direction {
	out := make([]bridge.Direction, n)
	for i := range out {
		out[i] = src.Direction(i)
	}
	return out
}
