package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// GateError reports misuse of the gate, the equivalent of an error-checking
// mutex refusing an operation. Once raised the bridge state is untrusted.
type GateError struct {
	Op        string
	Direction Direction
}

func (e *GateError) Error() string {
	if e.Direction.Valid() {
		return fmt.Sprintf("bridge gate: %s(%s) called without holding the gate", e.Op, e.Direction)
	}
	return fmt.Sprintf("bridge gate: %s called without holding the gate", e.Op)
}

// FatalHandler receives unrecoverable synchronization failures. It is not
// expected to return.
type FatalHandler func(err error)

func logFatal(err error) {
	log.Fatal().Err(err).Msg("Synchronization failure, bridge state can no longer be trusted")
}

// Gate is the admission gate: one lock shared by both directions and one
// condition per direction used as that direction's green light.
type Gate struct {
	mu    sync.Mutex
	conds [2]*sync.Cond
	held  atomic.Bool
	fatal FatalHandler
}

func NewGate(fatal FatalHandler) *Gate {
	if fatal == nil {
		fatal = logFatal
	}
	g := &Gate{fatal: fatal}
	g.conds[TowardA] = sync.NewCond(&g.mu)
	g.conds[TowardB] = sync.NewCond(&g.mu)
	return g
}

func (g *Gate) Acquire() {
	g.mu.Lock()
	if g.held.Swap(true) {
		g.fatal(&GateError{Op: "Acquire", Direction: NoSignal})
	}
}

func (g *Gate) Release() {
	if !g.held.Swap(false) {
		g.fatal(&GateError{Op: "Release", Direction: NoSignal})
		return
	}
	g.mu.Unlock()
}

// Await releases the gate, sleeps until Notify(d) and re-acquires the gate
// before returning. Callers re-check their predicate afterwards.
func (g *Gate) Await(d Direction) {
	if !g.held.Load() {
		g.fatal(&GateError{Op: "Await", Direction: d})
		return
	}
	g.held.Store(false)
	g.conds[d].Wait()
	g.held.Store(true)
}

// Notify wakes at most one vehicle waiting on d.
func (g *Gate) Notify(d Direction) {
	if !g.held.Load() {
		g.fatal(&GateError{Op: "Notify", Direction: d})
		return
	}
	g.conds[d].Signal()
}
