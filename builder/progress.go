package builder

import "sync/atomic"

// Progress receives status updates from workers. Calls must not block.
type Progress interface {
	SetMessage(msg string)
	Increment(delta int)
}

type nopProgress struct{}

func (nopProgress) SetMessage(string) {}
func (nopProgress) Increment(int) {}

// NopProgress discards every update.
var NopProgress Progress = nopProgress{}

// Counter counts completed units and forwards messages to a Listener as EventProgress.
// It is safe for concurrent use.
type Counter struct {
	total    int
	done     atomic.Int64
	listener Listener
}

// NewCounter returns a Counter expecting total units. listener may be nil.
func NewCounter(total int, listener Listener) *Counter {
	return &Counter{total: total, listener: listener}
}

func (c *Counter) SetMessage(msg string) {
	if c.listener != nil {
		c.listener(EventProgress{Message: msg, Done: c.Done(), Total: c.total})
	}
}

func (c *Counter) Increment(delta int) { c.done.Add(int64(delta)) }

// Done returns the number of completed units.
func (c *Counter) Done() int { return int(c.done.Load()) }

// Total returns the number of expected units.
func (c *Counter) Total() int { return c.total }
