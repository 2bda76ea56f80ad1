package reactor

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
)

// SupervisorConfig is the static restart policy for one supervised child.
type SupervisorConfig struct {
	MaxRestarts int           // cap on restarts before giving up permanently
	Delay       time.Duration // stop-then-start delay after report_dying
}

type childState struct {
	cfg      SupervisorConfig
	restarts int
	givenUp  bool
}

// Supervisor implements §4.14: a supervisor entity watches a fixed-size
// child list and, on report_dying, schedules a bounded-attempts restart.
// Beyond the bounded-attempts cap itself (the original contract), restart
// scheduling is additionally rate-limited by a github.com/joeycumines/
// go-catrate token-bucket limiter keyed by child id, so a child stuck in a
// dying/reviving loop cannot burn through its restart budget faster than
// the configured window even if report_dying is called in a tight loop -
// purely additive: a restart that the bounded-attempts cap would allow
// can still be deferred (never forbidden outright) by the rate limiter.
type Supervisor struct {
	kernel *Kernel

	mu       sync.Mutex
	children map[EntityID]*childState
	limiter  *catrate.Limiter
}

func newSupervisor(k *Kernel) *Supervisor {
	return &Supervisor{
		kernel:   k,
		children: make(map[EntityID]*childState),
		limiter:  catrate.NewLimiter(map[time.Duration]int{time.Second: 5}),
	}
}

// Watch registers child under supervisor with the given restart policy.
// The supervisor entity must already have FlagSupervisor set (via
// EntityConfig or AttachSupervisor).
func (s *Supervisor) Watch(supervisor, child EntityID, cfg SupervisorConfig) error {
	e, err := s.kernel.Lookup(supervisor)
	if err != nil {
		return err
	}
	e.setFlag(FlagSupervisor)
	e.isSupervisor = true
	e.children = append(e.children, child)

	ce, err := s.kernel.Lookup(child)
	if err != nil {
		return err
	}
	ce.supervisor = supervisor
	ce.setFlag(FlagSupervised)

	s.mu.Lock()
	s.children[child] = &childState{cfg: cfg}
	s.mu.Unlock()
	return nil
}

// ReportDying emits a DYING signal to child's supervisor, increments the
// child's restart counter, and - if under the max-restarts cap and the
// rate limiter admits it - schedules a one-shot stop-then-start restart
// after the configured delay, emitting REVIVE on completion. Exceeding
// the cap is permanent: no further restarts are scheduled for this child.
func (s *Supervisor) ReportDying(child EntityID, reason SignalID) error {
	ce, err := s.kernel.Lookup(child)
	if err != nil {
		return err
	}
	supervisorID := ce.supervisor

	s.mu.Lock()
	cs, ok := s.children[child]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "supervised child", ID: child}
	}
	if cs.givenUp {
		s.mu.Unlock()
		return nil
	}
	cs.restarts++
	overCap := cs.cfg.MaxRestarts > 0 && cs.restarts > cs.cfg.MaxRestarts
	if overCap {
		cs.givenUp = true
	}
	delay := cs.cfg.Delay
	s.mu.Unlock()

	width := s.kernel.opts.payloadWidth
	dying := newSignal(SigDying, child, width)
	dying.SetPayloadU16(0, uint16(reason))
	if supervisorID != 0 {
		_ = s.kernel.Emit(supervisorID, dying)
	}

	if overCap {
		return nil
	}
	if _, ok := s.limiter.Allow(child); !ok {
		// Rate-limited this round; the child stays down until a future
		// ReportDying call succeeds against the limiter.
		return nil
	}

	go s.restartAfter(child, delay)
	return nil
}

func (s *Supervisor) restartAfter(child EntityID, delay time.Duration) {
	if delay > 0 {
		<-time.After(delay)
	}
	ce, err := s.kernel.Lookup(child)
	if err != nil {
		return
	}
	s.kernel.Stop(ce)
	_ = s.kernel.Start(ce)
	width := s.kernel.opts.payloadWidth
	if ce.supervisor != 0 {
		_ = s.kernel.Emit(ce.supervisor, newSignal(SigRevive, child, width))
	}
}

// ResetRestarts clears child's restart counter and given-up flag, called
// on a successful operation signal from the application.
func (s *Supervisor) ResetRestarts(child EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.children[child]; ok {
		cs.restarts = 0
		cs.givenUp = false
	}
}

// RestartCount returns the number of restarts scheduled for child so far.
func (s *Supervisor) RestartCount(child EntityID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.children[child]; ok {
		return cs.restarts
	}
	return 0
}

// GivenUp reports whether child has exceeded its restart cap permanently.
func (s *Supervisor) GivenUp(child EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.children[child]; ok {
		return cs.givenUp
	}
	return false
}
