package verify

import (
	"fmt"
	"slices"

	"tradeprobe/pkg/core"
)

// validTransitions lists the statuses an order may move to from each non-terminal
// status. Terminal statuses have no entry.
var validTransitions = map[core.OrderStatus][]core.OrderStatus{
	core.StatusNew: {
		core.StatusPartiallyFilled,
		core.StatusFilled,
		core.StatusPendingCancel,
		core.StatusCanceled,
		core.StatusRejected,
		core.StatusExpired,
	},
	core.StatusPartiallyFilled: {
		core.StatusFilled,
		core.StatusPendingCancel,
		core.StatusCanceled,
		core.StatusExpired,
	},
	core.StatusPendingCancel: {
		core.StatusCanceled,
		core.StatusFilled,
		core.StatusPartiallyFilled,
	},
}

func isValidTransition(from, to core.OrderStatus) bool {
	if from == to {
		return true
	}
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(allowed, to)
}

// StatusTracker records the statuses observed for one order across server reads and
// rejects sequences the exchange must never produce, such as CANCELED followed by NEW.
// It never advances state on its own.
type StatusTracker struct {
	observed []core.OrderStatus
}

// Observe records status. It fails on an unknown status or an invalid transition from
// the previous observation; the rejected status is not recorded.
func (t *StatusTracker) Observe(status core.OrderStatus) error {
	if status == core.StatusUnknown {
		return fmt.Errorf("unrecognized order status")
	}
	if last, ok := t.Last(); ok && !isValidTransition(last, status) {
		return fmt.Errorf("invalid status transition %s -> %s", last, status)
	}
	t.observed = append(t.observed, status)
	return nil
}

// Last returns the most recent observation.
func (t *StatusTracker) Last() (core.OrderStatus, bool) {
	if len(t.observed) == 0 {
		return core.StatusUnknown, false
	}
	return t.observed[len(t.observed)-1], true
}

// History returns a copy of every accepted observation in order.
func (t *StatusTracker) History() []core.OrderStatus {
	return slices.Clone(t.observed)
}

// Terminal reports whether the last observation is terminal.
func (t *StatusTracker) Terminal() bool {
	last, ok := t.Last()
	return ok && last.IsTerminal()
}
