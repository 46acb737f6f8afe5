package model

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/onelane/bridge"
)

const fullTOML = `
[bridge]
vehicles = 6
max_load = 2
crossing_time = "150ms"
endpoints = ["Hanover", "Norwich"]

[traffic]
seed = 99
directions = ["a", "b", "a", "b", "toward_a", "TowardB"]
arrival_interval = "5ms"
stall_timeout = "3s"

[properties.one_way]
always = "on_bridge_a == 0 or on_bridge_b == 0"
`

func TestParseSpecTOML(t *testing.T) {
	spec, err := ParseSpec(strings.NewReader(fullTOML), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, 6, spec.Bridge.Vehicles)
	assert.Equal(t, 2, spec.Bridge.MaxLoad)
	assert.Equal(t, 150*time.Millisecond, spec.Bridge.CrossingTime.Duration)
	assert.Equal(t, [2]string{"Hanover", "Norwich"}, spec.EndpointNames())
	assert.Equal(t, uint64(99), spec.Traffic.Seed)
	assert.Equal(t, 5*time.Millisecond, spec.Traffic.ArrivalInterval.Duration)
	assert.Equal(t, 3*time.Second, spec.Traffic.StallTimeout.Duration)
	require.Contains(t, spec.Properties, "one_way")
	assert.Equal(t, "on_bridge_a == 0 or on_bridge_b == 0", spec.Properties["one_way"].Always)

	dirs, err := spec.FixedDirections()
	require.NoError(t, err)
	a, b := bridge.TowardA, bridge.TowardB
	assert.Equal(t, []bridge.Direction{a, b, a, b, a, b}, dirs)
	assert.NoError(t, spec.Validate())
}

func TestParseSpecYAML(t *testing.T) {
	in := `
bridge:
  vehicles: 3
  max_load: 1
  crossing_time: 40ms
traffic:
  directions: [b, a, b]
properties:
  capped:
    always: "on_bridge_b <= max_load"
`
	spec, err := ParseSpec(strings.NewReader(in), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 3, spec.Bridge.Vehicles)
	assert.Equal(t, 1, spec.Bridge.MaxLoad)
	assert.Equal(t, 40*time.Millisecond, spec.Bridge.CrossingTime.Duration)
	assert.Equal(t, []string{"b", "a", "b"}, spec.Traffic.Directions)
	assert.Equal(t, "on_bridge_b <= max_load", spec.Properties["capped"].Always)
	assert.Equal(t, [2]string{"A", "B"}, spec.EndpointNames())
}

func TestParseSpecDefaults(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		format Format
	}{
		{"toml", "[bridge]\nvehicles = 2\nmax_load = 1\n", FormatTOML},
		{"yaml", "bridge:\n  vehicles: 2\n  max_load: 1\n", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSpec(strings.NewReader(tt.in), tt.format)
			require.NoError(t, err)
			assert.Equal(t, bridge.DefaultCrossingTime, spec.Bridge.CrossingTime.Duration)
			assert.Zero(t, spec.Traffic.ArrivalInterval.Duration)
			assert.Zero(t, spec.Traffic.StallTimeout.Duration)
			dirs, err := spec.FixedDirections()
			require.NoError(t, err)
			assert.Nil(t, dirs)
		})
	}
}

func TestParseSpecRejectsUnknownKeys(t *testing.T) {
	_, err := ParseSpec(strings.NewReader("[bridge]\nvehicles = 2\nmax_lod = 1\n"), FormatTOML)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), "max_lod")

	_, err = ParseSpec(strings.NewReader("bridge:\n  vehicles: 2\n  max_lod: 1\n"), FormatYAML)
	assert.Error(t, err)
}

func TestParseSpecBadDuration(t *testing.T) {
	_, err := ParseSpec(strings.NewReader("[bridge]\ncrossing_time = \"soon\"\n"), FormatTOML)
	assert.Error(t, err)

	_, err = ParseSpec(strings.NewReader("bridge:\n  crossing_time: soon\n"), FormatYAML)
	assert.Error(t, err)
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Spec)
		target error
	}{
		{"zero max load", func(s *Spec) { s.Bridge.MaxLoad = 0 }, bridge.ErrInvalidMaxLoad},
		{"negative max load", func(s *Spec) { s.Bridge.MaxLoad = -3 }, bridge.ErrInvalidMaxLoad},
		{"negative vehicles", func(s *Spec) { s.Bridge.Vehicles = -1 }, bridge.ErrInvalidVehicleCount},
		{"too many vehicles", func(s *Spec) { s.Bridge.Vehicles = bridge.MaxVehicles + 1 }, bridge.ErrInvalidVehicleCount},
		{"negative crossing", func(s *Spec) { s.Bridge.CrossingTime.Duration = -time.Second }, bridge.ErrInvalidCrossingTime},
		{"three endpoints", func(s *Spec) { s.Bridge.Endpoints = []string{"x", "y", "z"} }, ErrInvalidSpec},
		{"direction count", func(s *Spec) { s.Traffic.Directions = []string{"a"} }, ErrInvalidSpec},
		{"bad direction", func(s *Spec) { s.Traffic.Directions = []string{"a", "up", "b", "a"} }, ErrInvalidSpec},
		{"negative interval", func(s *Spec) { s.Traffic.ArrivalInterval.Duration = -time.Millisecond }, ErrInvalidSpec},
		{"empty property", func(s *Spec) { s.Properties = map[string]PropertySpec{"p": {}} }, ErrInvalidSpec},
		{"property syntax", func(s *Spec) {
			s.Properties = map[string]PropertySpec{"p": {Always: "on_bridge_a =="}}
		}, ErrInvalidSpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultSpec(4, 2)
			tt.modify(spec)
			err := spec.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			_, err = spec.BuildExecutor()
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.NoError(t, DefaultSpec(0, 1).Validate(), "zero vehicles is a valid empty run")
	assert.NoError(t, DefaultSpec(bridge.MaxVehicles, 1).Validate())
}

func TestLoadSpecFromFile(t *testing.T) {
	spec, err := LoadSpecFromFile(filepath.Join("..", "testdata", "single.yml"))
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Bridge.Vehicles)
	assert.Equal(t, []string{"a"}, spec.Traffic.Directions)

	spec, err = LoadSpecFromFile(filepath.Join("..", "testdata", "fairness", "streak.toml"))
	require.NoError(t, err)
	assert.Equal(t, [2]string{"Hanover", "Norwich"}, spec.EndpointNames())

	_, err = LoadSpecFromFile(filepath.Join("..", "testdata", "missing.toml"))
	assert.Error(t, err)
}
