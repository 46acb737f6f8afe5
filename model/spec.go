package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/timewinder-dev/onelane/bridge"
	"gopkg.in/yaml.v2"
)

// Spec is a scenario file: the bridge, how traffic arrives, and extra
// properties to check on every event.
type Spec struct {
	Bridge     BridgeSpec              `toml:"bridge" yaml:"bridge"`
	Traffic    TrafficSpec             `toml:"traffic" yaml:"traffic"`
	Properties map[string]PropertySpec `toml:"properties,omitempty" yaml:"properties,omitempty"`
}

type BridgeSpec struct {
	Vehicles     int      `toml:"vehicles" yaml:"vehicles"`
	MaxLoad      int      `toml:"max_load" yaml:"max_load"`
	CrossingTime Duration `toml:"crossing_time,omitempty" yaml:"crossing_time,omitempty"`
	Endpoints    []string `toml:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

type TrafficSpec struct {
	Seed            uint64   `toml:"seed,omitempty" yaml:"seed,omitempty"`
	Directions      []string `toml:"directions,omitempty" yaml:"directions,omitempty"`
	ArrivalInterval Duration `toml:"arrival_interval,omitempty" yaml:"arrival_interval,omitempty"`
	StallTimeout    Duration `toml:"stall_timeout,omitempty" yaml:"stall_timeout,omitempty"`
}

type PropertySpec struct {
	Always string `toml:"always,omitempty" yaml:"always,omitempty"`
}

// Duration reads "250ms" style strings from TOML and YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

var ErrInvalidSpec = errors.New("invalid scenario")

// DefaultSpec is the scenario used when only a vehicle count and max load
// are given, matching the classic one-second crossing.
func DefaultSpec(vehicles, maxLoad int) *Spec {
	return &Spec{
		Bridge: BridgeSpec{
			Vehicles:     vehicles,
			MaxLoad:      maxLoad,
			CrossingTime: Duration{bridge.DefaultCrossingTime},
		},
	}
}

func ParseSpec(r io.Reader, format Format) (*Spec, error) {
	// Start from the defaults; keys present in the file override them.
	out := DefaultSpec(0, 0)
	switch format {
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(data, out); err != nil {
			return nil, err
		}
	default:
		md, err := toml.NewDecoder(r).Decode(out)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidSpec, undecoded)
		}
	}
	return out, nil
}

func LoadSpecFromFile(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := FormatTOML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	s, err := ParseSpec(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Spec) BridgeConfig() bridge.Config {
	return bridge.Config{
		Vehicles:     s.Bridge.Vehicles,
		MaxLoad:      s.Bridge.MaxLoad,
		CrossingTime: s.Bridge.CrossingTime.Duration,
	}
}

// EndpointNames returns display names for the A and B ends.
func (s *Spec) EndpointNames() [2]string {
	if len(s.Bridge.Endpoints) == 2 {
		return [2]string{s.Bridge.Endpoints[0], s.Bridge.Endpoints[1]}
	}
	return [2]string{"A", "B"}
}

// FixedDirections parses the explicit direction list, or returns nil when
// directions are drawn at random.
func (s *Spec) FixedDirections() ([]bridge.Direction, error) {
	if len(s.Traffic.Directions) == 0 {
		return nil, nil
	}
	out := make([]bridge.Direction, len(s.Traffic.Directions))
	for i, raw := range s.Traffic.Directions {
		d, err := bridge.ParseDirection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: vehicle %d: %v", ErrInvalidSpec, i, err)
		}
		out[i] = d
	}
	return out, nil
}

func (s *Spec) Validate() error {
	if err := s.BridgeConfig().Validate(); err != nil {
		return err
	}
	if n := len(s.Bridge.Endpoints); n != 0 && n != 2 {
		return fmt.Errorf("%w: endpoints needs exactly two names, got %d", ErrInvalidSpec, n)
	}
	if n := len(s.Traffic.Directions); n != 0 && n != s.Bridge.Vehicles {
		return fmt.Errorf("%w: %d directions given for %d vehicles", ErrInvalidSpec, n, s.Bridge.Vehicles)
	}
	if _, err := s.FixedDirections(); err != nil {
		return err
	}
	if s.Traffic.ArrivalInterval.Duration < 0 || s.Traffic.StallTimeout.Duration < 0 {
		return fmt.Errorf("%w: negative durations are not allowed", ErrInvalidSpec)
	}
	for name, p := range s.Properties {
		if p.Always == "" {
			return fmt.Errorf("%w: property %s has no expression", ErrInvalidSpec, name)
		}
		if _, err := exprOptions.ParseExpr(name, p.Always, 0); err != nil {
			return fmt.Errorf("%w: property %s: %v", ErrInvalidSpec, name, err)
		}
	}
	return nil
}
