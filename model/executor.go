package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/onelane/bridge"
	"github.com/timewinder-dev/onelane/cas"
	"golang.org/x/sync/errgroup"
)

// An Executor is the context and entrypoint for running a scenario
type Executor struct {
	Spec       *Spec
	Properties []Property
	Directions DirectionSource
	Endpoints  [2]string
	RunID      string

	// Set before Initialize.
	Reporter     Reporter
	DebugWriter  io.Writer
	KeepGoing    bool
	ShowDetails  bool
	CheckThreads int
	CacheSize    int

	CAS     cas.CAS
	Monitor *Monitor
	Bridge  *bridge.Bridge
}

type RunResult struct {
	RunID      string
	Success    bool
	Violations []PropertyViolation
	Statistics Statistics
	Final      bridge.Snapshot
}

// BuildExecutor validates the scenario and prepares its properties and
// direction assignment.
func (s *Spec) BuildExecutor() (*Executor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	props, err := s.BuildProperties()
	if err != nil {
		return nil, err
	}
	exec := &Executor{
		Spec:        s,
		Properties:  props,
		Endpoints:   s.EndpointNames(),
		RunID:       uuid.NewString(),
		DebugWriter: io.Discard,
	}
	fixed, err := s.FixedDirections()
	if err != nil {
		return nil, err
	}
	if fixed != nil {
		exec.Directions = FixedDirections(fixed)
	} else {
		exec.Directions = NewRandomDirections(s.Traffic.Seed)
	}
	return exec, nil
}

// Initialize builds the store, the monitor and the bridge.
func (e *Executor) Initialize() error {
	if e.DebugWriter == nil {
		e.DebugWriter = io.Discard
	}
	e.CAS = cas.NewLRUCache(cas.NewMemoryCAS(), e.CacheSize)
	e.Monitor = NewMonitor(e.CAS, e.Properties, e.CheckThreads)
	e.Monitor.KeepGoing = e.KeepGoing
	e.Monitor.ShowDetails = e.ShowDetails
	e.Monitor.Endpoints = e.Endpoints

	opts := []bridge.Option{bridge.WithObserver(e.Monitor)}
	if e.Reporter != nil {
		opts = append(opts, bridge.WithObserver(&StatusPrinter{Reporter: e.Reporter, Endpoints: e.Endpoints}))
	}
	if e.DebugWriter != io.Discard {
		opts = append(opts, bridge.WithObserver(bridge.ObserverFunc(func(s bridge.Snapshot) {
			fmt.Fprintf(e.DebugWriter, "#%d %s signaled=%s\n%s", s.Seq,
				describeEvent(s.Event, e.Endpoints), s.Signaled, FormatSnapshot(s, e.Endpoints))
		})))
	}
	b, err := bridge.New(e.Spec.BridgeConfig(), opts...)
	if err != nil {
		e.Monitor.Close()
		return err
	}
	e.Bridge = b
	return nil
}

// Run starts every vehicle and waits for all of them to leave the bridge.
// Cancelling ctx stops vehicles that have not started yet; started vehicles
// always finish.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	if e.Bridge == nil {
		return nil, errors.New("executor is not initialized")
	}
	logger := log.With().Str("run", e.RunID).Logger()
	n := e.Spec.Bridge.Vehicles
	dirs := Assign(e.Directions, n)
	interval := e.Spec.Traffic.ArrivalInterval.Duration
	start := time.Now()

	logger.Info().Int("vehicles", n).Int("max_load", e.Bridge.MaxLoad()).
		Dur("crossing_time", e.Bridge.CrossingTime()).Msg("Starting run")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for id, d := range dirs {
			if id > 0 && interval > 0 {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-time.After(interval):
				}
			} else if err := gctx.Err(); err != nil {
				return err
			}
			g.Go(func() error {
				e.Bridge.RunVehicle(id, d)
				logger.Debug().Int("vehicle", id).Stringer("direction", d).Msg("Vehicle exited")
				return nil
			})
		}
		return nil
	})

	finished := make(chan error, 1)
	go func() {
		finished <- g.Wait()
	}()

	stop := make(chan struct{})
	defer close(stop)
	var stall <-chan error
	if timeout := e.Spec.Traffic.StallTimeout.Duration; timeout > 0 {
		// Quiet gaps of up to one crossing plus one arrival interval are normal.
		stall = watchStall(ctx, e.Monitor.LastEvent, e.Bridge.CrossingTime()+interval+timeout, stop)
	}

	var runErr error
	select {
	case runErr = <-finished:
	case runErr = <-stall:
		// Blocked vehicles cannot be cancelled, so the monitor stays open
		// and the caller is expected to exit.
		logger.Error().Err(runErr).Msg("Run stalled")
		final := e.Bridge.Snapshot()
		return &RunResult{RunID: e.RunID, Final: final, Statistics: e.Monitor.Statistics()}, runErr
	}

	e.Monitor.Close()
	final := e.Bridge.Snapshot()
	if runErr == nil && !final.Empty() {
		e.Monitor.AddViolation("FinalState", "bridge not empty after every vehicle exited", final)
	}

	stats := e.Monitor.Statistics()
	stats.Elapsed = time.Since(start)
	violations := e.Monitor.Violations()
	result := &RunResult{
		RunID:      e.RunID,
		Success:    runErr == nil && len(violations) == 0,
		Violations: violations,
		Statistics: stats,
		Final:      final,
	}
	logger.Info().Bool("success", result.Success).Int("events", stats.Events).
		Dur("elapsed", stats.Elapsed).Msg("Run finished")
	return result, runErr
}
