package verify

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the verdict of one scenario.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFailed:
		return "FAIL"
	case StatusSkipped:
		return "SKIP"
	}
	return "UNKNOWN"
}

// Outcome is the structured result of one scenario run.
type Outcome struct {
	Suite    string
	Name     string
	Status   Status
	Reason   string
	Detail   string
	Duration time.Duration
	Err      error
}

func (o Outcome) String() string {
	s := fmt.Sprintf("[%s] %s/%s (%s)", o.Status, o.Suite, o.Name, o.Duration.Round(time.Millisecond))
	if o.Reason != "" {
		s += ": " + o.Reason
	}
	return s
}

// Reporter receives outcomes as scenarios finish.
type Reporter interface {
	Report(Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Outcome)

func (f ReporterFunc) Report(o Outcome) { f(o) }

// LogReporter writes every outcome as a structured log line.
type LogReporter struct {
	logger zerolog.Logger
}

func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(o Outcome) {
	var ev *zerolog.Event
	switch o.Status {
	case StatusFailed:
		ev = r.logger.Error().Err(o.Err)
	case StatusSkipped:
		ev = r.logger.Warn()
	default:
		ev = r.logger.Info()
	}
	ev = ev.Str("suite", o.Suite).
		Str("scenario", o.Name).
		Str("status", o.Status.String()).
		Dur("duration", o.Duration)
	if o.Reason != "" {
		ev = ev.Str("reason", o.Reason)
	}
	if o.Detail != "" {
		ev = ev.Str("detail", o.Detail)
	}
	ev.Msg("scenario finished")
}

// Collector keeps outcomes in memory. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *Collector) Report(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// Outcomes returns a copy of the collected outcomes in report order.
func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Find returns the outcome with the given scenario name.
func (c *Collector) Find(name string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// MultiReporter fans an outcome out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(o Outcome) {
	for _, r := range m {
		r.Report(o)
	}
}

// Summary counts outcomes by status.
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
}

func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

// OK reports whether nothing failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// Merge adds other's counts to s.
func (s *Summary) Merge(other Summary) {
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}
