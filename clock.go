package reactor

import (
	"sync"
	"time"
)

// Clock supplies the monotonic time base the kernel uses for signal
// timestamps, flow await-time deadlines, and the power manager's idle
// accounting. The "am I in interrupt context" predicate has no counterpart
// on an OS-hosted Go target (there are no interrupt contexts);
// InISRContext always reports false for the default Clock, and exists
// purely so the EmitFromISR code path's contract can be documented and
// tested against a stub that does implement it.
type Clock interface {
	NowMs() int64
	InISRContext() bool
}

// SystemClock is the default Clock, monotonic per time.Now's guarantees.
// Modeled on eventloop's tickAnchor pattern (eventloop/loop.go): an anchor
// captured once, with subsequent reads expressed as an elapsed offset, so
// the exposed millisecond value never goes backwards even if wall-clock
// time is adjusted.
type SystemClock struct {
	once   sync.Once
	anchor time.Time
}

// NowMs returns milliseconds elapsed since the clock's first use.
func (c *SystemClock) NowMs() int64 {
	c.once.Do(func() { c.anchor = time.Now() })
	return time.Since(c.anchor).Milliseconds()
}

// InISRContext always returns false for SystemClock.
func (c *SystemClock) InISRContext() bool { return false }

// NewSystemClock returns a ready-to-use SystemClock.
func NewSystemClock() *SystemClock { return &SystemClock{} }
