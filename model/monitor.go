package model

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/onelane/bridge"
	"github.com/timewinder-dev/onelane/cas"
)

// TraceStep is one published event and the hash of the snapshot it produced.
type TraceStep struct {
	Seq       uint64
	Event     bridge.Event
	StateHash cas.Hash
}

type PropertyViolation struct {
	PropertyName string
	Message      string
	Seq          uint64
	Event        bridge.Event
	StateHash    cas.Hash
	Trace        []TraceStep
	State        *bridge.Snapshot
	Endpoints    [2]string
	ShowDetails  bool
	CAS          cas.CAS
}

type Statistics struct {
	Events         int
	Admissions     [2]int
	Departures     [2]int
	Switches       int
	LongestStreak  int
	PeakOccupancy  int
	PeakWaiting    [2]int
	UniqueStates   int
	ViolationCount int
	Elapsed        time.Duration
}

// CheckItem is a snapshot waiting to be stored and checked.
type CheckItem struct {
	Snapshot bridge.Snapshot
}

// Monitor observes the bridge, records a trace in the CAS and checks every
// property against every snapshot on a pool of check workers.
type Monitor struct {
	Properties  []Property
	CAS         cas.CAS
	KeepGoing   bool
	ShowDetails bool
	Endpoints   [2]string

	states          *cas.MemoryCAS
	numCheckThreads int
	checkQueue      chan *CheckItem
	checkWg         sync.WaitGroup
	closeOnce       sync.Once

	lastEvent atomic.Int64

	mu         sync.Mutex
	stats      Statistics
	lastHeld   bridge.Direction
	streak     int
	trace      []TraceStep
	violations []PropertyViolation
	violated   map[string]bool
}

// NewMonitor starts numCheckThreads workers; zero or less means NumCPU/2.
func NewMonitor(store cas.CAS, props []Property, numCheckThreads int) *Monitor {
	if numCheckThreads <= 0 {
		numCheckThreads = max(runtime.NumCPU()/2, 1)
	}
	m := &Monitor{
		Properties:      props,
		CAS:             store,
		Endpoints:       [2]string{"A", "B"},
		states:          cas.NewMemoryCAS(),
		numCheckThreads: numCheckThreads,
		checkQueue:      make(chan *CheckItem, numCheckThreads*64),
		lastHeld:        bridge.NoSignal,
		violated:        make(map[string]bool),
	}
	m.lastEvent.Store(time.Now().UnixNano())
	for i := 0; i < numCheckThreads; i++ {
		m.checkWg.Add(1)
		go m.checkWorker(i)
	}
	return m
}

// Observe runs under the bridge gate: update the ordered statistics and
// hand the snapshot to the workers.
func (m *Monitor) Observe(s bridge.Snapshot) {
	m.lastEvent.Store(time.Now().UnixNano())
	m.updateStats(&s)
	m.checkQueue <- &CheckItem{Snapshot: s}
}

func (m *Monitor) updateStats(s *bridge.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &m.stats
	st.Events++
	d := s.Event.Direction
	switch s.Event.Kind {
	case bridge.Admitted:
		st.Admissions[d]++
		if d != m.lastHeld {
			if m.lastHeld != bridge.NoSignal {
				st.Switches++
			}
			m.lastHeld = d
			m.streak = 0
		}
		m.streak++
		st.LongestStreak = max(st.LongestStreak, m.streak)
	case bridge.Departed:
		st.Departures[d]++
	}
	st.PeakOccupancy = max(st.PeakOccupancy, s.OnBridgeCount[bridge.TowardA]+s.OnBridgeCount[bridge.TowardB])
	for _, dir := range bridge.Directions {
		st.PeakWaiting[dir] = max(st.PeakWaiting[dir], s.WaitingCount[dir])
	}
}

// LastEvent is when the bridge last changed state.
func (m *Monitor) LastEvent() time.Time {
	return time.Unix(0, m.lastEvent.Load())
}

func (m *Monitor) checkWorker(workerID int) {
	defer m.checkWg.Done()
	for item := range m.checkQueue {
		m.processCheckItem(workerID, item)
	}
}

func (m *Monitor) processCheckItem(workerID int, item *CheckItem) {
	s := &item.Snapshot

	hash, err := m.CAS.Put(s)
	if err != nil {
		log.Error().Err(err).Int("worker", workerID).Uint64("seq", s.Seq).Msg("Failed to store snapshot")
	}
	stateOnly := s.StateOnly()
	if _, err := m.states.Put(&stateOnly); err != nil {
		log.Error().Err(err).Int("worker", workerID).Uint64("seq", s.Seq).Msg("Failed to hash state")
	}
	m.recordStep(TraceStep{Seq: s.Seq, Event: s.Event, StateHash: hash})

	for _, prop := range m.Properties {
		result, err := prop.Check(s)
		if err != nil {
			result = violated(prop.Name(), "check failed: %v", err)
		}
		if !result.Success {
			m.recordViolation(prop.Name(), result.Message, s, hash)
		}
	}
}

func (m *Monitor) recordStep(step TraceStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uint64(len(m.trace)) < step.Seq {
		m.trace = append(m.trace, TraceStep{})
	}
	m.trace[step.Seq-1] = step
}

func (m *Monitor) recordViolation(name, message string, s *bridge.Snapshot, hash cas.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.violated[name] && !m.KeepGoing {
		return
	}
	m.violated[name] = true
	snap := *s
	m.violations = append(m.violations, PropertyViolation{
		PropertyName: name,
		Message:      message,
		Seq:          s.Seq,
		Event:        s.Event,
		StateHash:    hash,
		State:        &snap,
		Endpoints:    m.Endpoints,
		ShowDetails:  m.ShowDetails,
		CAS:          m.CAS,
	})
	log.Warn().Str("property", name).Uint64("seq", s.Seq).Msg(message)
}

// Close drains the queue and stops the workers. The bridge must not publish
// after Close.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.checkQueue)
		m.checkWg.Wait()
	})
}

// Trace returns the recorded steps in event order. Call after Close.
func (m *Monitor) Trace() []TraceStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TraceStep, len(m.trace))
	copy(out, m.trace)
	return out
}

// Violations returns violations ordered by event, each with the trace up to
// and including its event. Call after Close.
func (m *Monitor) Violations() []PropertyViolation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PropertyViolation, len(m.violations))
	copy(out, m.violations)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	for i := range out {
		n := min(int(out[i].Seq), len(m.trace))
		out[i].Trace = append([]TraceStep(nil), m.trace[:n]...)
	}
	return out
}

// AddViolation records a violation found outside the property checks, such
// as a non-empty bridge after every vehicle finished.
func (m *Monitor) AddViolation(name, message string, s bridge.Snapshot) {
	m.recordViolation(name, message, &s, 0)
}

// Statistics counts events published so far. UniqueStates lags until Close.
func (m *Monitor) Statistics() Statistics {
	m.mu.Lock()
	st := m.stats
	st.ViolationCount = len(m.violations)
	m.mu.Unlock()
	st.UniqueStates = m.states.Len()
	return st
}
