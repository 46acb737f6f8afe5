package bridge

// State is the shared record guarded by the gate. Every field is read and
// written only while the gate is held.
type State struct {
	MaxLoad int

	// OnBridge counts vehicles crossing per direction. At most one entry is
	// non-zero and neither exceeds MaxLoad.
	OnBridge [2]int
	// Waiting counts vehicles blocked in Arrive per direction.
	Waiting [2]int
	// Consecutive counts admissions per direction since the opposite
	// direction last vacated the bridge.
	Consecutive [2]int

	WaitingSet [2]map[int]struct{}
	BridgeSet  map[int]Direction
}

func NewState(maxLoad int) *State {
	return &State{
		MaxLoad:    maxLoad,
		WaitingSet: [2]map[int]struct{}{make(map[int]struct{}), make(map[int]struct{})},
		BridgeSet:  make(map[int]Direction),
	}
}

// Threshold is the streak length after which a direction yields to waiters
// on the other side.
func (s *State) Threshold() int {
	return 2 * s.MaxLoad
}

// CanEnter is the admission predicate for a vehicle heading in d.
func (s *State) CanEnter(d Direction) bool {
	return s.OnBridge[d.Opposite()] == 0 && s.OnBridge[d] < s.MaxLoad
}

// NextSignal decides which direction to wake after d was just admitted or
// departed. A direction keeps the bridge until it empties out or reaches the
// threshold, and then only yields if someone is waiting on the other side.
func (s *State) NextSignal(d Direction) Direction {
	o := d.Opposite()
	if (s.OnBridge[d] == 0 || s.Consecutive[d] >= s.Threshold()) && s.Waiting[o] > 0 {
		return o
	}
	return d
}

func (s *State) markWaiting(id int, d Direction) {
	s.Waiting[d]++
	s.WaitingSet[d][id] = struct{}{}
}

func (s *State) admit(id int, d Direction) {
	s.Waiting[d]--
	// A vehicle waits in one set only; clearing both keeps the sets exact
	// even if a caller mislabels the direction.
	delete(s.WaitingSet[TowardA], id)
	delete(s.WaitingSet[TowardB], id)
	s.BridgeSet[id] = d
	s.OnBridge[d]++
	s.Consecutive[d]++
}

func (s *State) depart(id int, d Direction) {
	s.OnBridge[d]--
	delete(s.BridgeSet, id)
	s.Consecutive[d.Opposite()] = 0
}
