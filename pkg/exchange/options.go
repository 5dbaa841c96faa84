package exchange

import (
	"time"
)

type Option func(*Options)

// Options are the optional query parameters shared by list endpoints.
// Zero values mean "use the endpoint default".
type Options struct {
	Limit     int
	StartTime time.Time
	EndTime   time.Time
	FromID    int64
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

func WithTimeRange(start, end time.Time) Option {
	return func(o *Options) {
		o.StartTime = start
		o.EndTime = end
	}
}

func WithFromID(id int64) Option {
	return func(o *Options) {
		o.FromID = id
	}
}

// ApplyOptions folds opts over a zero Options.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LimitOr returns the configured limit, or def when none was set.
func (o *Options) LimitOr(def int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	return def
}
