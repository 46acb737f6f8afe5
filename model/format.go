package model

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/timewinder-dev/onelane/bridge"
	"github.com/timewinder-dev/onelane/cas"
)

func formatIDs(ids []int) string {
	var b strings.Builder
	b.WriteString("{")
	for _, id := range ids {
		fmt.Fprintf(&b, " %d ", id)
	}
	b.WriteString("}")
	return b.String()
}

// FormatStatus renders the event line and the bridge below it:
//
//	3 is on the bridge:
//		BRIDGE (NORWICH-BOUND):	{ 1  3 }
//		WAITING FOR NORWICH:	{ 4 }
//		WAITING FOR HANOVER:	{ 0  2 }
func FormatStatus(s bridge.Snapshot, endpoints [2]string) string {
	var b strings.Builder
	switch s.Event.Kind {
	case bridge.Admitted:
		b.WriteString(color.Green.Sprintf("%d is on the bridge:", s.Event.Vehicle))
	case bridge.Departed:
		b.WriteString(color.Cyan.Sprintf("%d is off the bridge:", s.Event.Vehicle))
	case bridge.Arrived:
		b.WriteString(color.Gray.Sprintf("%d is waiting:", s.Event.Vehicle))
	default:
		b.WriteString(color.Gray.Sprint("bridge:"))
	}
	b.WriteString("\n")
	writeBridge(&b, s, endpoints, "\t")
	b.WriteString("\n")
	return b.String()
}

func writeBridge(w io.Writer, s bridge.Snapshot, endpoints [2]string, indent string) {
	bound := s.Occupied()
	if bound == bridge.NoSignal && s.Event.Direction.Valid() {
		bound = s.Event.Direction
	}
	label := "EMPTY"
	if bound.Valid() {
		label = strings.ToUpper(endpoints[bound]) + "-BOUND"
	}
	all := append(append([]int(nil), s.OnBridge[bridge.TowardA]...), s.OnBridge[bridge.TowardB]...)
	fmt.Fprintf(w, "%s%s\t%s\n", indent, color.Bold.Sprintf("BRIDGE (%s):", label), formatIDs(all))
	for _, d := range bridge.Directions {
		fmt.Fprintf(w, "%s%s\t%s\n", indent,
			color.Bold.Sprintf("WAITING FOR %s:", strings.ToUpper(endpoints[d])), formatIDs(s.Waiting[d]))
	}
}

// FormatSnapshot renders a snapshot with its counters, for traces.
func FormatSnapshot(s bridge.Snapshot, endpoints [2]string) string {
	var b strings.Builder
	writeSnapshot(&b, s, endpoints, "")
	return b.String()
}

func writeSnapshot(w io.Writer, s bridge.Snapshot, endpoints [2]string, indent string) {
	writeBridge(w, s, endpoints, indent)
	fmt.Fprintf(w, "%sconsecutive: %s=%d %s=%d  max load: %d\n", indent,
		endpoints[bridge.TowardA], s.Consecutive[bridge.TowardA],
		endpoints[bridge.TowardB], s.Consecutive[bridge.TowardB], s.MaxLoad)
}

func describeEvent(ev bridge.Event, endpoints [2]string) string {
	if !ev.Direction.Valid() {
		return ev.Kind.String()
	}
	return fmt.Sprintf("vehicle %d %s toward %s", ev.Vehicle, ev.Kind, endpoints[ev.Direction])
}

// FormatPropertyViolation formats a single property violation for display
func FormatPropertyViolation(v PropertyViolation) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")
	b.WriteString(color.Red.Sprint("PROPERTY VIOLATION"))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Property: "))
	b.WriteString(color.Yellow.Sprintf("%s\n", v.PropertyName))
	b.WriteString(color.Bold.Sprint("Event:    "))
	b.WriteString(fmt.Sprintf("#%d %s\n", v.Seq, describeEvent(v.Event, v.Endpoints)))
	b.WriteString(color.Bold.Sprint("Message:  "))
	b.WriteString(color.Red.Sprintf("%s\n", v.Message))
	b.WriteString(color.Bold.Sprint("Hash:     "))
	b.WriteString(fmt.Sprintf("%s\n", v.StateHash))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("--------------------------------------------------------------------------------"))
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("Event Trace:"))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("--------------------------------------------------------------------------------"))
	b.WriteString("\n")

	if len(v.Trace) == 0 {
		b.WriteString("  (no events recorded)\n")
	} else if v.ShowDetails && v.CAS != nil {
		reconstructTrace(&b, v)
	} else {
		for _, step := range v.Trace {
			b.WriteString(fmt.Sprintf("  %3d. %s → State %s\n",
				step.Seq, describeEvent(step.Event, v.Endpoints), step.StateHash))
		}
	}

	if v.State != nil {
		b.WriteString("\n")
		b.WriteString(color.Cyan.Sprint("State at violation:"))
		b.WriteString("\n")
		writeSnapshot(&b, *v.State, v.Endpoints, "  ")
	}
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")
	return b.String()
}

// reconstructTrace rebuilds every step's snapshot from the CAS.
func reconstructTrace(w io.Writer, v PropertyViolation) {
	for _, step := range v.Trace {
		s, err := cas.Retrieve[bridge.Snapshot](v.CAS, step.StateHash)
		if err != nil {
			fmt.Fprintf(w, "\n  Step %d: %s → State %s (unavailable)\n",
				step.Seq, describeEvent(step.Event, v.Endpoints), step.StateHash)
			continue
		}
		fmt.Fprintf(w, "\n  Step %d:\n", step.Seq)
		fmt.Fprintf(w, "  ├─ Event: %s\n", describeEvent(step.Event, v.Endpoints))
		if s.Signaled.Valid() {
			fmt.Fprintf(w, "  ├─ Signaled: %s\n", v.Endpoints[s.Signaled])
		}
		fmt.Fprint(w, "  └─ State:\n")
		writeSnapshot(w, *s, v.Endpoints, "     ")
	}
}

// FormatAllViolations formats all property violations for display
func FormatAllViolations(violations []PropertyViolation) string {
	if len(violations) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")
	b.WriteString(color.Red.Sprintf("PROPERTY VIOLATIONS FOUND: %d\n", len(violations)))
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")

	for i, v := range violations {
		b.WriteString(color.Yellow.Sprintf("\nViolation #%d:\n", i+1))
		b.WriteString(FormatPropertyViolation(v))
	}

	return b.String()
}

// FormatStatistics formats run statistics
func FormatStatistics(stats Statistics, endpoints [2]string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("=== Bridge statistics ==="))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Events published: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.Events))
	for _, d := range bridge.Directions {
		b.WriteString(color.Bold.Sprintf("Crossings toward %s: ", endpoints[d]))
		b.WriteString(fmt.Sprintf("%d admitted, %d departed, peak queue %d\n",
			stats.Admissions[d], stats.Departures[d], stats.PeakWaiting[d]))
	}
	b.WriteString(color.Bold.Sprint("Direction switches: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.Switches))
	b.WriteString(color.Bold.Sprint("Longest same-direction streak: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.LongestStreak))
	b.WriteString(color.Bold.Sprint("Peak occupancy: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.PeakOccupancy))
	b.WriteString(color.Bold.Sprint("Unique bridge states: "))
	b.WriteString(fmt.Sprintf("%d\n", stats.UniqueStates))
	b.WriteString(color.Bold.Sprint("Elapsed: "))
	b.WriteString(fmt.Sprintf("%s\n", stats.Elapsed))

	b.WriteString(color.Bold.Sprint("Property violations found: "))
	if stats.ViolationCount > 0 {
		b.WriteString(color.Red.Sprintf("%d\n", stats.ViolationCount))
	} else {
		b.WriteString(color.Green.Sprintf("%d\n", stats.ViolationCount))
	}
	return b.String()
}
