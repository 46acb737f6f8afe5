package bridge

import (
	"fmt"
	"strings"
)

// Direction is one of the two orientations a vehicle can cross in.
type Direction int

const (
	TowardA Direction = iota
	TowardB
)

// NoSignal is recorded in snapshots for events that did not run the fairness
// policy.
const NoSignal Direction = -1

// Directions lists both directions in index order.
var Directions = [2]Direction{TowardA, TowardB}

func (d Direction) Opposite() Direction {
	if d == TowardA {
		return TowardB
	}
	return TowardA
}

func (d Direction) Valid() bool {
	return d == TowardA || d == TowardB
}

func (d Direction) String() string {
	switch d {
	case TowardA:
		return "TowardA"
	case TowardB:
		return "TowardB"
	case NoSignal:
		return "None"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Short returns the one letter form used in scenario files and property
// expressions, or "" for NoSignal.
func (d Direction) Short() string {
	switch d {
	case TowardA:
		return "a"
	case TowardB:
		return "b"
	}
	return ""
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "towarda", "toward_a":
		return TowardA, nil
	case "b", "towardb", "toward_b":
		return TowardB, nil
	}
	return NoSignal, fmt.Errorf("unknown direction %q", s)
}
