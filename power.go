package reactor

import "sync"

// PowerMode is a totally ordered power state, deepest last.
type PowerMode int

const (
	ModeActive PowerMode = iota
	ModeIdle
	ModeLightSleep
	ModeDeepSleep
)

func (m PowerMode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeIdle:
		return "idle"
	case ModeLightSleep:
		return "light_sleep"
	case ModeDeepSleep:
		return "deep_sleep"
	default:
		return "unknown"
	}
}

// PowerHAL is the swappable hardware-abstraction surface the power
// manager drives when it decides to enter a non-active mode.
type PowerHAL interface {
	EnterIdle(ms int64)
	EnterLightSleep(ms int64, sources uint32)
	EnterDeepSleep(ms int64, sources uint32)
	WakeupReason() uint32
	NowMs() int64
}

// NoopHAL satisfies PowerHAL by busy-waiting the requested duration via
// the supplied clock, useful as a default on hosts with no real sleep
// states (and in tests, where a Clock stub can make the wait instant).
type NoopHAL struct {
	Clock Clock
	wake  uint32
}

func (h *NoopHAL) EnterIdle(ms int64)                      { h.busyWait(ms) }
func (h *NoopHAL) EnterLightSleep(ms int64, sources uint32) { h.busyWait(ms) }
func (h *NoopHAL) EnterDeepSleep(ms int64, sources uint32)  { h.busyWait(ms) }
func (h *NoopHAL) WakeupReason() uint32                     { return h.wake }
func (h *NoopHAL) NowMs() int64                             { return h.Clock.NowMs() }

func (h *NoopHAL) busyWait(ms int64) {
	if h.Clock == nil || ms <= 0 {
		return
	}
	start := h.Clock.NowMs()
	for h.Clock.NowMs()-start < ms {
	}
}

type lockKey struct {
	entity EntityID
	mode   PowerMode
}

// PowerStats accumulates time and wakeup counts per mode, plus the
// longest observed idle() call.
type PowerStats struct {
	TimeMs   [4]int64
	Wakeups  [4]int
}

// PowerManager implements the vote-based power manager of §4.10: any
// entity may lock a mode (preventing the system from entering that mode
// or anything deeper), and idle() consults the deepest unlocked mode
// before calling into the HAL.
type PowerManager struct {
	kernel *Kernel
	hal    PowerHAL

	mu    sync.Mutex
	locks map[lockKey]int
	stats PowerStats
}

func newPowerManager(k *Kernel) *PowerManager {
	return &PowerManager{
		kernel: k,
		hal:    &NoopHAL{Clock: k.clock},
		locks:  make(map[lockKey]int),
	}
}

// SetHAL swaps the power manager's hardware abstraction.
func (p *PowerManager) SetHAL(hal PowerHAL) { p.hal = hal }

// Lock increments the reference count for (entity, mode), preventing
// allowed_mode from returning mode or anything deeper while any lock is
// held at or above it.
func (p *PowerManager) Lock(entity EntityID, mode PowerMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locks[lockKey{entity, mode}]++
}

// Unlock decrements the reference count for (entity, mode); it is a no-op
// if no lock is held.
func (p *PowerManager) Unlock(entity EntityID, mode PowerMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := lockKey{entity, mode}
	if p.locks[k] > 0 {
		p.locks[k]--
		if p.locks[k] == 0 {
			delete(p.locks, k)
		}
	}
}

// unlockAll releases every lock held by entity. Called by Kernel.Stop.
func (p *PowerManager) unlockAll(entity EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.locks {
		if k.entity == entity {
			delete(p.locks, k)
		}
	}
}

// AllowedMode returns the deepest mode not currently locked by any
// entity, scanned from ModeDeepSleep downward.
func (p *PowerManager) AllowedMode() PowerMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	for mode := ModeDeepSleep; mode > ModeActive; mode-- {
		if p.anyLockedAtOrAbove(mode) {
			continue
		}
		return mode
	}
	return ModeActive
}

func (p *PowerManager) anyLockedAtOrAbove(mode PowerMode) bool {
	for k, n := range p.locks {
		if n > 0 && k.mode <= mode {
			return true
		}
	}
	return false
}

// Idle consults AllowedMode and, if it is at least threshold, calls the
// corresponding HAL method with timeoutMs and sources, then accumulates
// the elapsed time into that mode's statistic bucket and increments its
// wakeup counter. If the allowed mode is shallower than threshold, Idle
// does nothing.
func (p *PowerManager) Idle(threshold PowerMode, timeoutMs int64, sources uint32) {
	mode := p.AllowedMode()
	if mode < threshold {
		return
	}
	start := p.hal.NowMs()
	switch mode {
	case ModeIdle:
		p.hal.EnterIdle(timeoutMs)
	case ModeLightSleep:
		p.hal.EnterLightSleep(timeoutMs, sources)
	case ModeDeepSleep:
		p.hal.EnterDeepSleep(timeoutMs, sources)
	default:
		return
	}
	elapsed := p.hal.NowMs() - start

	p.mu.Lock()
	p.stats.TimeMs[mode] += elapsed
	p.stats.Wakeups[mode]++
	p.mu.Unlock()
}

// Stats returns a snapshot of accumulated per-mode time and wakeup
// counts.
func (p *PowerManager) Stats() PowerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// NextEventMs returns the minimum positive delta, from now, across every
// registered entity's next-event timestamp, or -1 if none is registered.
func (p *PowerManager) NextEventMs() int64 {
	now := p.kernel.clock.NowMs()
	best := int64(-1)
	for _, e := range p.kernel.Entities() {
		ts := e.NextEventMs()
		if ts <= 0 {
			continue
		}
		delta := ts - now
		if delta < 0 {
			delta = 0
		}
		if best < 0 || delta < best {
			best = delta
		}
	}
	return best
}
