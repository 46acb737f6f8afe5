package model

import (
	"fmt"
	"io"

	"github.com/timewinder-dev/onelane/bridge"
)

// Reporter handles progress reporting during a run
type Reporter interface {
	Printf(format string, args ...interface{})
}

// SilentReporter does not output any progress
type SilentReporter struct{}

func (r *SilentReporter) Printf(format string, args ...interface{}) {}

// ColorReporter outputs colorized progress to a writer (typically stdout)
type ColorReporter struct {
	Writer io.Writer
}

func (r *ColorReporter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.Writer, format, args...)
}

// StatusPrinter prints the bridge after every admission and departure.
// It runs under the bridge gate so reports never interleave.
type StatusPrinter struct {
	Reporter  Reporter
	Endpoints [2]string
}

func (p *StatusPrinter) Observe(s bridge.Snapshot) {
	if s.Event.Kind != bridge.Admitted && s.Event.Kind != bridge.Departed {
		return
	}
	p.Reporter.Printf("%s", FormatStatus(s, p.Endpoints))
}
