// Package verify drives scenario suites against an exchange client and reports
// structured pass, fail and skip outcomes.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Requirement is a capability a scenario needs before it can be scheduled.
type Requirement uint8

const (
	RequiresCredentials Requirement = 1 << iota
	RequiresLoad
)

// Capabilities describes what the current environment can do. It is decided once,
// before any scenario runs.
type Capabilities struct {
	Credentials bool
	// Load allows scenarios that deliberately push the exchange toward its limits.
	Load bool
}

// Eligible reports whether a scenario with req can run, and why not.
func (c Capabilities) Eligible(req Requirement) (bool, string) {
	var missing []string
	if req&RequiresCredentials != 0 && !c.Credentials {
		missing = append(missing, "API credentials are not configured")
	}
	if req&RequiresLoad != 0 && !c.Load {
		missing = append(missing, "load scenarios are disabled")
	}
	if len(missing) > 0 {
		return false, strings.Join(missing, "; ")
	}
	return true, ""
}

// Scenario is one named check. Run returns nil on pass. A Detail returned through
// WithDetail is attached to the outcome.
type Scenario struct {
	Suite    string
	Name     string
	Requires Requirement
	Run      func(ctx context.Context) error
}

// VerificationError is a failed expectation at a named step.
type VerificationError struct {
	Step       string
	Reason     string
	StatusCode int
	Code       int
}

func (e *VerificationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Step)
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.StatusCode != 0 || e.Code != 0 {
		fmt.Fprintf(&b, " (status %d, code %d)", e.StatusCode, e.Code)
	}
	return b.String()
}

func failf(step, format string, args ...any) *VerificationError {
	return &VerificationError{Step: step, Reason: fmt.Sprintf(format, args...)}
}

// detailed carries an informational message out of a passing scenario.
type detailed struct {
	detail string
}

func (d *detailed) Error() string { return d.detail }

// WithDetail marks a scenario as passed and attaches an informational detail.
func WithDetail(format string, args ...any) error {
	return &detailed{detail: fmt.Sprintf(format, args...)}
}

// Runner schedules scenarios sequentially and reports each outcome.
type Runner struct {
	reporter Reporter
	caps     Capabilities
	timeout  time.Duration
	logger   zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScenarioTimeout bounds each scenario. Zero means no bound.
func WithScenarioTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithRunnerLogger sets the logger used for scheduling decisions.
func WithRunnerLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(reporter Reporter, caps Capabilities, opts ...RunnerOption) *Runner {
	r := &Runner{
		reporter: reporter,
		caps:     caps,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every eligible scenario in order. Ineligible scenarios are reported as
// skipped without running. A cancelled ctx skips the remaining scenarios.
func (r *Runner) Run(ctx context.Context, scenarios ...Scenario) Summary {
	var sum Summary
	for _, sc := range scenarios {
		o := r.runOne(ctx, sc)
		sum.add(o)
		r.reporter.Report(o)
	}
	return sum
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) Outcome {
	o := Outcome{Suite: sc.Suite, Name: sc.Name}

	if ok, reason := r.caps.Eligible(sc.Requires); !ok {
		o.Status = StatusSkipped
		o.Reason = reason
		return o
	}
	if err := ctx.Err(); err != nil {
		o.Status = StatusSkipped
		o.Reason = "run cancelled"
		return o
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Debug().Str("suite", sc.Suite).Str("scenario", sc.Name).Msg("scenario started")
	start := time.Now()
	err := safeRun(runCtx, sc.Run)
	o.Duration = time.Since(start)

	var d *detailed
	switch {
	case err == nil:
		o.Status = StatusPassed
	case errors.As(err, &d):
		o.Status = StatusPassed
		o.Detail = d.detail
	default:
		o.Status = StatusFailed
		o.Reason = err.Error()
		o.Err = err
	}
	return o
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scenario panicked: %v", rec)
		}
	}()
	return fn(ctx)
}
