package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/onelane/bridge"
)

const (
	a = bridge.TowardA
	b = bridge.TowardB
)

// snap builds a snapshot whose id sets match its counts.
func snap(maxLoad int, ev bridge.Event, onBridge, waiting [2][]int) *bridge.Snapshot {
	s := &bridge.Snapshot{
		Seq:      1,
		Event:    ev,
		MaxLoad:  maxLoad,
		OnBridge: onBridge,
		Waiting:  waiting,
		Signaled: bridge.NoSignal,
	}
	for _, d := range bridge.Directions {
		s.OnBridgeCount[d] = len(onBridge[d])
		s.WaitingCount[d] = len(waiting[d])
	}
	return s
}

func admitted(id int, d bridge.Direction) bridge.Event {
	return bridge.Event{Kind: bridge.Admitted, Vehicle: id, Direction: d}
}

func departed(id int, d bridge.Direction) bridge.Event {
	return bridge.Event{Kind: bridge.Departed, Vehicle: id, Direction: d}
}

func TestBuiltinProperties(t *testing.T) {
	healthy := snap(2, admitted(1, a), [2][]int{{0, 1}, nil}, [2][]int{nil, {2, 3}})
	healthy.Consecutive[a] = 2
	healthy.Signaled = a

	bothWays := snap(2, admitted(1, a), [2][]int{{1}, {2}}, [2][]int{})

	overloaded := snap(1, admitted(1, a), [2][]int{{0, 1}, nil}, [2][]int{})

	starving := snap(1, admitted(3, a), [2][]int{{3}, nil}, [2][]int{nil, {4}})
	starving.Consecutive[a] = 2
	starving.Signaled = a

	duplicated := snap(2, admitted(1, a), [2][]int{{1}, nil}, [2][]int{{1}, nil})

	miscounted := snap(2, admitted(1, a), [2][]int{{1}, nil}, [2][]int{})
	miscounted.OnBridgeCount[a] = 2

	unsorted := snap(3, admitted(5, a), [2][]int{{5, 2}, nil}, [2][]int{})

	notReset := snap(2, departed(2, b), [2][]int{}, [2][]int{})
	notReset.Consecutive[a] = 1

	tests := []struct {
		name   string
		s      *bridge.Snapshot
		failed string
	}{
		{"healthy", healthy, ""},
		{"both directions on bridge", bothWays, "MutualExclusion"},
		{"over max load", overloaded, "Capacity"},
		{"streak past threshold", starving, "NoStarvation"},
		{"vehicle in two places", duplicated, "ConsistentSnapshot"},
		{"count disagrees with set", miscounted, "ConsistentSnapshot"},
		{"ids out of order", unsorted, "ConsistentSnapshot"},
		{"opposite streak survives departure", notReset, "OppositeReset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CheckProperties(tt.s, BuiltinProperties())
			require.NoError(t, err)
			if tt.failed == "" {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.False(t, result.Success)
			assert.Equal(t, tt.failed, result.Name)
			assert.Contains(t, result.Message, tt.failed)
		})
	}
}

func TestNoStarvationAcceptsHandoff(t *testing.T) {
	s := snap(1, admitted(3, a), [2][]int{{3}, nil}, [2][]int{nil, {4}})
	s.Consecutive[a] = 2
	s.Signaled = b

	result, err := checkFunc{"NoStarvation", checkNoStarvation}.Check(s)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Arrivals do not run the policy.
	s.Event = bridge.Event{Kind: bridge.Arrived, Vehicle: 4, Direction: b}
	s.Signaled = bridge.NoSignal
	result, err = checkFunc{"NoStarvation", checkNoStarvation}.Check(s)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExprProperty(t *testing.T) {
	s := snap(3, admitted(4, b), [2][]int{nil, {4, 6}}, [2][]int{{1, 2, 5}, nil})
	s.Consecutive[b] = 2
	s.Signaled = b

	tests := []struct {
		expr string
		ok   bool
	}{
		{"on_bridge_a == 0", true},
		{"on_bridge_b == 2 and waiting_a == 3", true},
		{"consecutive_b < 2 * max_load", true},
		{"event == 'admitted' and direction == 'b' and vehicle == 4", true},
		{"signaled == 'b'", true},
		{"bridge_ids_b == [4, 6] and 5 in waiting_ids_a", true},
		{"len(waiting_ids_b) == 0 and consecutive_a == 0", true},
		{"on_bridge_b < 2", false},
		{"vehicle in waiting_ids_a", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := NewExprProperty("p", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, p.Source())

			result, err := p.Check(s)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, result.Success, result.Message)
			assert.Equal(t, "p", result.Name)
		})
	}
}

func TestExprPropertyErrors(t *testing.T) {
	_, err := NewExprProperty("broken", "on_bridge_a ==")
	assert.Error(t, err)

	s := snap(1, admitted(0, a), [2][]int{{0}, nil}, [2][]int{})

	p, err := NewExprProperty("count", "on_bridge_a + waiting_a")
	require.NoError(t, err)
	_, err = p.Check(s)
	assert.ErrorContains(t, err, "not bool")

	p, err = NewExprProperty("undefined", "lanes == 1")
	require.NoError(t, err)
	_, err = p.Check(s)
	assert.Error(t, err)

	_, err = CheckProperties(s, []Property{p})
	assert.ErrorContains(t, err, "undefined")
}

func TestBuildPropertiesOrder(t *testing.T) {
	spec := DefaultSpec(2, 1)
	spec.Properties = map[string]PropertySpec{
		"zeta":  {Always: "True"},
		"alpha": {Always: "max_load == 1"},
	}
	props, err := spec.BuildProperties()
	require.NoError(t, err)

	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{
		"MutualExclusion", "Capacity", "NoStarvation", "ConsistentSnapshot", "OppositeReset",
		"alpha", "zeta",
	}, names)
}
