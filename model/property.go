package model

import (
	"fmt"
	"slices"

	"github.com/timewinder-dev/onelane/bridge"
)

type PropertyResult struct {
	Success bool
	Message string
	Name    string
}

// A Property is checked against every snapshot the bridge publishes.
type Property interface {
	Name() string
	Check(s *bridge.Snapshot) (PropertyResult, error)
}

func satisfied(name string) PropertyResult {
	return PropertyResult{Success: true, Name: name, Message: fmt.Sprintf("Property %s satisfied", name)}
}

func violated(name, format string, args ...any) PropertyResult {
	return PropertyResult{Success: false, Name: name, Message: fmt.Sprintf("Property %s violated: %s", name, fmt.Sprintf(format, args...))}
}

// checkFunc adapts a plain function into a Property.
type checkFunc struct {
	name  string
	check func(s *bridge.Snapshot) PropertyResult
}

func (c checkFunc) Name() string {
	return c.name
}

func (c checkFunc) Check(s *bridge.Snapshot) (PropertyResult, error) {
	return c.check(s), nil
}

// BuiltinProperties are the bridge invariants checked on every run.
func BuiltinProperties() []Property {
	return []Property{
		checkFunc{"MutualExclusion", checkMutualExclusion},
		checkFunc{"Capacity", checkCapacity},
		checkFunc{"NoStarvation", checkNoStarvation},
		checkFunc{"ConsistentSnapshot", checkConsistentSnapshot},
		checkFunc{"OppositeReset", checkOppositeReset},
	}
}

func checkMutualExclusion(s *bridge.Snapshot) PropertyResult {
	const name = "MutualExclusion"
	if s.OnBridgeCount[bridge.TowardA] > 0 && s.OnBridgeCount[bridge.TowardB] > 0 {
		return violated(name, "%d vehicles toward A and %d toward B on the bridge",
			s.OnBridgeCount[bridge.TowardA], s.OnBridgeCount[bridge.TowardB])
	}
	return satisfied(name)
}

func checkCapacity(s *bridge.Snapshot) PropertyResult {
	const name = "Capacity"
	for _, d := range bridge.Directions {
		if s.OnBridgeCount[d] > s.MaxLoad {
			return violated(name, "%d vehicles %s exceed max load %d", s.OnBridgeCount[d], d, s.MaxLoad)
		}
	}
	return satisfied(name)
}

// checkNoStarvation: once a direction has used up its streak and the other
// side has waiters, the signal must go to the other side.
func checkNoStarvation(s *bridge.Snapshot) PropertyResult {
	const name = "NoStarvation"
	if s.Event.Kind != bridge.Admitted && s.Event.Kind != bridge.Departed {
		return satisfied(name)
	}
	d, o := s.Event.Direction, s.Event.Direction.Opposite()
	if s.WaitingCount[o] > 0 && s.Consecutive[d] >= 2*s.MaxLoad && s.Signaled != o {
		return violated(name, "%s crossed %d in a row with %d waiting %s, but %s was signaled",
			d, s.Consecutive[d], s.WaitingCount[o], o, s.Signaled)
	}
	return satisfied(name)
}

func checkConsistentSnapshot(s *bridge.Snapshot) PropertyResult {
	const name = "ConsistentSnapshot"
	seen := make(map[int]string)
	place := func(id int, where string) PropertyResult {
		if prev, ok := seen[id]; ok {
			return violated(name, "vehicle %d is both %s and %s", id, prev, where)
		}
		seen[id] = where
		return satisfied(name)
	}
	for _, d := range bridge.Directions {
		if len(s.OnBridge[d]) != s.OnBridgeCount[d] || len(s.Waiting[d]) != s.WaitingCount[d] {
			return violated(name, "sets and counts disagree for %s", d)
		}
		if !slices.IsSorted(s.OnBridge[d]) || !slices.IsSorted(s.Waiting[d]) {
			return violated(name, "ids for %s are not ordered", d)
		}
		for _, id := range s.OnBridge[d] {
			if r := place(id, "on the bridge "+d.String()); !r.Success {
				return r
			}
		}
		for _, id := range s.Waiting[d] {
			if r := place(id, "waiting "+d.String()); !r.Success {
				return r
			}
		}
	}
	return satisfied(name)
}

func checkOppositeReset(s *bridge.Snapshot) PropertyResult {
	const name = "OppositeReset"
	if s.Event.Kind != bridge.Departed {
		return satisfied(name)
	}
	o := s.Event.Direction.Opposite()
	if s.Consecutive[o] != 0 {
		return violated(name, "%s streak is %d after a %s departure", o, s.Consecutive[o], s.Event.Direction)
	}
	return satisfied(name)
}

// CheckProperties returns an error for the first failing property.
func CheckProperties(s *bridge.Snapshot, props []Property) (*PropertyResult, error) {
	for _, prop := range props {
		result, err := prop.Check(s)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", prop.Name(), err)
		}
		if !result.Success {
			return &result, nil
		}
	}
	return nil, nil
}
