package bridge

import (
	"io"
	"slices"

	"github.com/samber/lo"
	"github.com/shamaton/msgpack/v2"
)

type EventKind int

const (
	Initial EventKind = iota
	Arrived
	Admitted
	Departed
)

func (k EventKind) String() string {
	switch k {
	case Initial:
		return "initial"
	case Arrived:
		return "arrived"
	case Admitted:
		return "admitted"
	case Departed:
		return "departed"
	}
	return "unknown"
}

// Event is the protocol step that produced a snapshot.
type Event struct {
	Kind      EventKind
	Vehicle   int
	Direction Direction
}

// Snapshot is a consistent copy of the bridge state taken while the gate was
// held, tagged with the event that produced it.
type Snapshot struct {
	Seq     uint64
	Event   Event
	MaxLoad int

	// Vehicle ids per direction, sorted ascending.
	OnBridge [2][]int
	Waiting  [2][]int

	OnBridgeCount [2]int
	WaitingCount  [2]int
	Consecutive   [2]int

	// Signaled is the direction the fairness policy woke, or NoSignal.
	Signaled Direction
}

func (s *State) snapshot(seq uint64, ev Event, signaled Direction) Snapshot {
	out := Snapshot{
		Seq:           seq,
		Event:         ev,
		MaxLoad:       s.MaxLoad,
		OnBridgeCount: s.OnBridge,
		WaitingCount:  s.Waiting,
		Consecutive:   s.Consecutive,
		Signaled:      signaled,
	}
	for _, d := range Directions {
		out.OnBridge[d] = sortedIDs(lo.Keys(lo.PickByValues(s.BridgeSet, []Direction{d})))
		out.Waiting[d] = sortedIDs(lo.Keys(s.WaitingSet[d]))
	}
	return out
}

func sortedIDs(ids []int) []int {
	slices.Sort(ids)
	return ids
}

// StateOnly strips the event metadata so identical bridge states compare and
// hash equal.
func (s Snapshot) StateOnly() Snapshot {
	s.Seq = 0
	s.Event = Event{Kind: Initial, Vehicle: -1, Direction: NoSignal}
	s.Signaled = NoSignal
	for _, d := range Directions {
		s.OnBridge[d] = normalizeIDs(s.OnBridge[d])
		s.Waiting[d] = normalizeIDs(s.Waiting[d])
	}
	return s
}

func normalizeIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// Empty reports whether nobody is on or waiting for the bridge.
func (s Snapshot) Empty() bool {
	return s.OnBridgeCount == [2]int{} && s.WaitingCount == [2]int{}
}

// Occupied returns the direction currently holding the bridge, or NoSignal
// when it is empty.
func (s Snapshot) Occupied() Direction {
	for _, d := range Directions {
		if s.OnBridgeCount[d] > 0 {
			return d
		}
	}
	return NoSignal
}

func (s *Snapshot) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, s)
}

func (s *Snapshot) Deserialize(r io.Reader) error {
	return msgpack.UnmarshalRead(r, s)
}
