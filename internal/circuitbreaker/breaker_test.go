package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock, changes *[]string) *Breaker {
	return New(Config{
		FailThreshold:    3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			*changes = append(*changes, from.String()+"->"+to.String())
		},
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed", StateClosed, "CLOSED"},
		{"open", StateOpen, "OPEN"},
		{"half_open", StateHalfOpen, "HALF_OPEN"},
		{"unknown", State(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []string
	b := newTestBreaker(clock, &changes)

	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, b.Failures())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
	assert.Equal(t, []string{"CLOSED->OPEN"}, changes)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []string
	b := newTestBreaker(clock, &changes)

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 1, b.Failures())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []string
	b := newTestBreaker(clock, &changes)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(999 * time.Millisecond)
	assert.False(t, b.Allow())

	clock.Advance(time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Record(true)
	assert.Equal(t, StateHalfOpen, b.State())
	b.Record(true)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, changes)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []string
	b := newTestBreaker(clock, &changes)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	clock.Advance(time.Second)
	require.True(t, b.Allow())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_ResetAndMetrics(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []string
	b := newTestBreaker(clock, &changes)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	b.Allow()
	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	m := b.Metrics()
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.RejectedRequests)
	assert.Equal(t, int64(3), m.FailedRequests)
	assert.Equal(t, "CLOSED", m.CurrentState)
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->CLOSED"}, changes)
}

func TestBreaker_ConcurrentRecord(t *testing.T) {
	b := New(Config{FailThreshold: 1000, SuccessThreshold: 1, Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if b.Allow() {
				b.Record(i%2 == 0)
			}
		}(i)
	}
	wg.Wait()

	m := b.Metrics()
	assert.Equal(t, int64(100), m.TotalRequests)
	assert.Equal(t, int64(100), m.SuccessRequests+m.FailedRequests)
}
