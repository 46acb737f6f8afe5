// Package bridge coordinates vehicles crossing a single-lane bridge: one
// direction at a time, at most MaxLoad vehicles on the bridge, and a bounded
// streak per direction so neither side starves.
package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxVehicles bounds the number of vehicles in one run.
	MaxVehicles = 10000
	// DefaultCrossingTime is how long a vehicle occupies the bridge.
	DefaultCrossingTime = time.Second
)

var (
	ErrInvalidMaxLoad      = errors.New("max load must be at least 1")
	ErrInvalidVehicleCount = fmt.Errorf("vehicle count must be between 0 and %d", MaxVehicles)
	ErrInvalidCrossingTime = errors.New("crossing time must not be negative")
)

type Config struct {
	Vehicles     int
	MaxLoad      int
	CrossingTime time.Duration
}

func (c Config) Validate() error {
	if c.MaxLoad < 1 {
		return fmt.Errorf("max load %d: %w", c.MaxLoad, ErrInvalidMaxLoad)
	}
	if c.Vehicles < 0 || c.Vehicles > MaxVehicles {
		return fmt.Errorf("vehicle count %d: %w", c.Vehicles, ErrInvalidVehicleCount)
	}
	if c.CrossingTime < 0 {
		return fmt.Errorf("crossing time %s: %w", c.CrossingTime, ErrInvalidCrossingTime)
	}
	return nil
}

type Option func(*Bridge)

// WithObserver registers an observer for every state change.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observers = append(b.observers, o)
	}
}

// WithFatalHandler replaces the handler for gate failures. The default logs
// at fatal level and exits.
func WithFatalHandler(f FatalHandler) Option {
	return func(b *Bridge) {
		b.fatal = f
	}
}

// Bridge owns the shared state and the gate guarding it.
type Bridge struct {
	gate      *Gate
	state     *State
	crossing  time.Duration
	observers []Observer
	fatal     FatalHandler

	// Guarded by gate.
	seq        uint64
	last       Event
	lastSignal Direction
}

func New(cfg Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bridge{
		state:      NewState(cfg.MaxLoad),
		crossing:   cfg.CrossingTime,
		last:       Event{Kind: Initial, Vehicle: -1, Direction: NoSignal},
		lastSignal: NoSignal,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.gate = NewGate(b.fatal)
	return b, nil
}

func (b *Bridge) MaxLoad() int {
	return b.state.MaxLoad
}

func (b *Bridge) CrossingTime() time.Duration {
	return b.crossing
}

// RunVehicle drives one vehicle through Arrive, Cross and Exit. It returns
// once the vehicle has left the bridge.
func (b *Bridge) RunVehicle(id int, d Direction) {
	v := NewVehicle(id, d)
	b.Arrive(v)
	b.Cross(v)
	b.Exit(v)
}

// Arrive registers v as waiting and blocks until it may enter the bridge.
func (b *Bridge) Arrive(v *Vehicle) {
	d := v.Direction
	log.Trace().Int("vehicle", v.ID).Stringer("direction", d).Msg("Arriving")

	b.gate.Acquire()
	defer b.gate.Release()

	b.state.markWaiting(v.ID, d)
	v.Phase = Waiting
	b.publish(Event{Kind: Arrived, Vehicle: v.ID, Direction: d}, NoSignal)

	for !b.state.CanEnter(d) {
		b.gate.Await(d)
	}

	b.state.admit(v.ID, d)
	v.Phase = OnBridge
	next := b.state.NextSignal(d)
	b.gate.Notify(next)
	b.publish(Event{Kind: Admitted, Vehicle: v.ID, Direction: d}, next)
}

// Cross holds the bridge for the crossing time. The gate is not held.
func (b *Bridge) Cross(v *Vehicle) {
	v.Phase = Crossing
	if b.crossing > 0 {
		time.Sleep(b.crossing)
	}
}

// Exit removes v from the bridge and hands the green light on.
func (b *Bridge) Exit(v *Vehicle) {
	d := v.Direction

	b.gate.Acquire()
	defer b.gate.Release()

	b.state.depart(v.ID, d)
	v.Phase = Exited
	next := b.state.NextSignal(d)
	b.gate.Notify(next)
	b.publish(Event{Kind: Departed, Vehicle: v.ID, Direction: d}, next)

	log.Trace().Int("vehicle", v.ID).Stringer("direction", d).Stringer("signaled", next).Msg("Exited")
}

// Snapshot returns a consistent view of the bridge tagged with the most
// recent event.
func (b *Bridge) Snapshot() Snapshot {
	b.gate.Acquire()
	defer b.gate.Release()
	return b.state.snapshot(b.seq, b.last, b.lastSignal)
}

// publish must be called with the gate held.
func (b *Bridge) publish(ev Event, signaled Direction) {
	b.seq++
	b.last = ev
	b.lastSignal = signaled
	if len(b.observers) == 0 {
		return
	}
	s := b.state.snapshot(b.seq, ev, signaled)
	for _, o := range b.observers {
		o.Observe(s)
	}
}
