// Package circuitbreaker stops a client from hammering an endpoint that keeps failing at
// the network layer. Application errors (4xx/5xx) are not failures here.
package circuitbreaker

import (
	"sync"
	"time"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// OnStateChange is called outside the breaker lock after every transition.
	OnStateChange func(from, to State) `json:"-"`
	// Now defaults to time.Now.
	Now func() time.Time `json:"-"`
}

type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	openedAt  time.Time
	metrics   MetricsSnapshot
}

func New(config Config) *Breaker {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.FailThreshold <= 0 {
		config.FailThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &Breaker{cfg: config}
}

// Allow reports whether a call may proceed. An open breaker moves to half-open once
// the timeout has elapsed since it opened.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	b.metrics.TotalRequests++
	from, to, changed := b.state, b.state, false
	allowed := true
	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) >= b.cfg.Timeout {
			to, changed = b.transition(StateHalfOpen), true
		} else {
			allowed = false
			b.metrics.RejectedRequests++
		}
	}
	b.mu.Unlock()
	b.notify(from, to, changed)
	return allowed
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	from := b.state
	to, changed := from, false
	if success {
		b.metrics.SuccessRequests++
	} else {
		b.metrics.FailedRequests++
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
		} else {
			b.failures++
			if b.failures >= b.cfg.FailThreshold {
				to, changed = b.transition(StateOpen), true
			}
		}
	case StateHalfOpen:
		if success {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				to, changed = b.transition(StateClosed), true
			}
		} else {
			to, changed = b.transition(StateOpen), true
		}
	case StateOpen:
		// A call admitted before the breaker opened finished late; the
		// outcome is counted but does not move the state.
	}
	b.mu.Unlock()
	b.notify(from, to, changed)
}

func (b *Breaker) transition(to State) State {
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.cfg.Now()
	}
	b.metrics.StateChanges++
	return to
}

func (b *Breaker) notify(from, to State, changed bool) {
	if changed && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.mu.Unlock()
	b.notify(from, StateClosed, from != StateClosed)
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Metrics() MetricsSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.metrics
	m.CurrentState = b.state.String()
	return m
}

type MetricsSnapshot struct {
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	RejectedRequests int64
	StateChanges     int32
	CurrentState     string
}
