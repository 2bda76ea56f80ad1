package reactor

import (
	"sort"
	"sync"
)

// Kernel is the explicit process-wide value threading every shared table
// through the API surface: the entity registry, the pub/sub bus, the
// parameter store, the ACL table, codec schemas, the power manager's lock
// set, the trace ring, and the wormhole route table. Multiple independent
// Kernel values may coexist in one process (design note §9), each fully
// isolated from the others.
type Kernel struct {
	opts *kernelOptions

	mu       sync.RWMutex
	entities map[EntityID]*Entity
	order    []EntityID // insertion order, used by Broadcast/DispatchMulti

	clock Clock

	bus    *Bus
	params *ParamStore
	acl    *ACLTable
	codec  *Codec
	power  *PowerManager
	trace  *Trace
	worm   *Wormhole
	panic  *PanicRecorder
	super  *Supervisor
}

// NewKernel constructs a Kernel with the given options applied. Entities
// are added afterwards via AddEntity; no entity may be added once the
// kernel starts dispatching concurrently from multiple goroutines without
// external synchronization (registration is a startup-time operation, per
// the concurrency model).
func NewKernel(opts ...KernelOption) *Kernel {
	cfg := resolveKernelOptions(opts)
	k := &Kernel{
		opts:     cfg,
		entities: make(map[EntityID]*Entity, cfg.maxEntities),
		clock:    cfg.clock,
	}
	k.bus = newBus(k, cfg.maxTopics, cfg.maxSubsPerTopic)
	k.params = newParamStore(k, cfg.maxParams)
	k.acl = newACLTable(cfg.maxACLRules)
	k.acl.setEntityCap(cfg.maxEntities)
	k.codec = newCodec(cfg.payloadWidth)
	k.power = newPowerManager(k)
	k.trace = newTrace(cfg.traceCapacity)
	k.worm = newWormhole(k, cfg.maxRoutes)
	k.panic = newPanicRecorder(cfg.traceCapacity)
	k.super = newSupervisor(k)
	return k
}

// Clock returns the kernel's time source.
func (k *Kernel) Clock() Clock { return k.clock }

// Bus returns the kernel's publish/subscribe bus.
func (k *Kernel) Bus() *Bus { return k.bus }

// Params returns the kernel's parameter store.
func (k *Kernel) Params() *ParamStore { return k.params }

// ACL returns the kernel's access-control table.
func (k *Kernel) ACL() *ACLTable { return k.acl }

// Codec returns the kernel's signal codec.
func (k *Kernel) Codec() *Codec { return k.codec }

// Power returns the kernel's power manager.
func (k *Kernel) Power() *PowerManager { return k.power }

// Trace returns the kernel's trace ring.
func (k *Kernel) Trace() *Trace { return k.trace }

// Wormhole returns the kernel's cross-chip link.
func (k *Kernel) Wormhole() *Wormhole { return k.worm }

// Panic returns the kernel's panic/black-box recorder.
func (k *Kernel) PanicRecorder() *PanicRecorder { return k.panic }

// Supervisor returns the kernel's supervisor coordinator.
func (k *Kernel) SupervisorCoordinator() *Supervisor { return k.super }

// PayloadWidth returns the fixed signal payload width this kernel was
// constructed with.
func (k *Kernel) PayloadWidth() int { return k.opts.payloadWidth }

// AddEntity statically constructs and registers an Entity from cfg. Per
// invariant (i), this must only be called during startup, before
// concurrent dispatch begins.
func (k *Kernel) AddEntity(cfg EntityConfig) (*Entity, error) {
	if cfg.ID == 0 {
		return nil, WrapError("add entity", ErrInvalidArg)
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.entities) >= k.opts.maxEntities {
		return nil, WrapError("add entity", ErrNoMemory)
	}
	if _, exists := k.entities[cfg.ID]; exists {
		return nil, WrapError("add entity", ErrAlreadyExists)
	}

	scratch := cfg.ScratchpadSize
	if scratch <= 0 {
		scratch = k.opts.scratchpadSize
	}
	depth := cfg.InboxDepth
	if depth <= 0 {
		depth = k.opts.inboxDepth
	}

	states := append([]StateDescriptor(nil), cfg.States...)
	idx := make(map[StateID]int, len(states))
	for i, st := range states {
		idx[st.ID] = i
	}
	if _, ok := idx[cfg.InitialState]; !ok {
		return nil, &InvalidStateError{Entity: cfg.ID, State: cfg.InitialState}
	}

	mixins := append([]Mixin(nil), cfg.Mixins...)
	sort.SliceStable(mixins, func(i, j int) bool { return mixins[i].Priority < mixins[j].Priority })

	mw := append([]MiddlewareEntry(nil), cfg.Middleware...)
	sort.SliceStable(mw, func(i, j int) bool { return mw[i].Priority < mw[j].Priority })

	e := &Entity{
		id:            cfg.ID,
		name:          cfg.Name,
		kernel:        k,
		states:        states,
		stateIdx:      idx,
		initial:       cfg.InitialState,
		mixins:        mixins,
		middleware:    mw,
		flow:          cfg.Flow,
		scratchpad:    make([]byte, scratch),
		inbox:         NewInbox(depth),
		supervisor:    cfg.Supervisor,
		userData:      cfg.UserData,
		restartCounts: make(map[EntityID]int),
	}
	e.current.Store(uint32(cfg.InitialState))

	k.entities[cfg.ID] = e
	k.order = append(k.order, cfg.ID)
	return e, nil
}

// Lookup resolves an EntityID to its Entity, or reports not-found.
func (k *Kernel) Lookup(id EntityID) (*Entity, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.entities[id]
	if !ok {
		return nil, &NotFoundError{Kind: "entity", ID: id}
	}
	return e, nil
}

// Entities returns the registered entities in registration order.
func (k *Kernel) Entities() []*Entity {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*Entity, 0, len(k.order))
	for _, id := range k.order {
		out = append(out, k.entities[id])
	}
	return out
}

// Start runs the entity's init protocol: marks it active and self-delivers
// SigInit, transitioning it from "initialized" to "started"/"active" per
// the documented lifecycle.
func (k *Kernel) Start(e *Entity) error {
	e.setFlag(FlagActive)
	if st, ok := e.stateByID(e.State()); ok && st.OnEntry != nil {
		st.OnEntry(e, newSignal(SigEntry, 0, k.opts.payloadWidth))
	}
	return k.EmitFromISR(e.id, newSignal(SigInit, 0, k.opts.payloadWidth))
}

// Stop runs the entity's teardown protocol: exit action, inbox clear, flow
// reset, marks it inactive. Also unsubscribes it from the bus and unlocks
// any power-manager locks it held.
func (k *Kernel) Stop(e *Entity) {
	if st, ok := e.stateByID(e.State()); ok && st.OnExit != nil {
		st.OnExit(e, newSignal(SigExit, 0, k.opts.payloadWidth))
	}
	for {
		if _, ok := e.inbox.TryPop(); !ok {
			break
		}
	}
	e.resetFlow()
	e.clearFlag(FlagActive)
	e.clearFlag(FlagSuspended)
	k.bus.unsubscribeAll(e.id)
	k.power.unlockAll(e.id)
}

// Emit enqueues sig onto target's inbox. If sig.TimestampMs is zero it is
// stamped with the kernel clock's current time. Returns ErrQueueFull (as a
// *QueueFullError) on inbox overflow; there is no blocking emit.
func (k *Kernel) Emit(target EntityID, sig Signal) error {
	e, err := k.Lookup(target)
	if err != nil {
		return err
	}
	return k.emitTo(e, sig)
}

// EmitFromISR is the ISR-safe emission variant: it never blocks and
// additionally reports whether a higher-priority task was woken, so a
// caller emulating interrupt context can request a yield. On an OS-hosted
// Go target this takes the same lock-free-safe path as Emit; the
// woken-flag contract is preserved because it is part of the tested
// external behavior (spec.md §4.1).
func (k *Kernel) EmitFromISR(target EntityID, sig Signal) (bool, error) {
	e, err := k.Lookup(target)
	if err != nil {
		return false, err
	}
	wasEmpty := e.inbox.Len() == 0
	if err := k.emitTo(e, sig); err != nil {
		return false, err
	}
	return wasEmpty, nil
}

func (k *Kernel) emitTo(e *Entity, sig Signal) error {
	if sig.TimestampMs == 0 {
		sig.TimestampMs = k.clock.NowMs()
	}
	if sig.Payload == nil {
		sig.Payload = make([]byte, k.opts.payloadWidth)
	}
	err := e.inbox.Push(e.id, sig)
	if err != nil {
		logAt(LevelWarn, "dispatch", e.id, sig.ID, e.State(), "inbox overflow", err)
	}
	return err
}

// Broadcast emits sig to every registered entity in id order, stopping
// only at the end of the table (not on the first failure). It returns the
// count of entities the signal was successfully enqueued to.
func (k *Kernel) Broadcast(sig Signal) int {
	entities := k.Entities()
	sort.Slice(entities, func(i, j int) bool { return entities[i].id < entities[j].id })
	n := 0
	for _, e := range entities {
		if err := k.emitTo(e, sig.clone()); err == nil {
			n++
		}
	}
	return n
}

// Run is the tickless main loop (§4.6): one non-blocking dispatch per
// entity, a synthesized TIMEOUT signal to any entity whose flow wake time
// has elapsed, and - if nothing was processed - a sleep of idleMs
// milliseconds (0 = no sleep). sleep is injected so tests can avoid real
// wall-clock waits.
func (k *Kernel) Run(idleMs int64, sleep func(ms int64)) {
	entities := k.Entities()
	processed := k.deliverTimeouts(entities)
	processed = k.DispatchMulti(entities) || processed
	if !processed && idleMs > 0 && sleep != nil {
		sleep(idleMs)
	}
}

func (k *Kernel) deliverTimeouts(entities []*Entity) bool {
	now := k.clock.NowMs()
	any := false
	for _, e := range entities {
		wake := e.flowWakeMs
		if wake != 0 && now >= wake {
			if err := k.emitTo(e, newSignal(SigTimeout, 0, k.opts.payloadWidth)); err == nil {
				any = true
			}
		}
	}
	return any
}

// DispatchMulti implements the fairness policy of §4.2's dispatch_multi
// operation: a single non-blocking Dispatch attempt per entity, visited in
// the order given, for one round. Run calls this with every registered
// entity in registration order each iteration; callers that want a
// different fairness order (e.g. round-robin starting past the last
// entity serviced) can call it directly with a reordered slice.
func (k *Kernel) DispatchMulti(entities []*Entity) bool {
	any := false
	for _, e := range entities {
		if n, _ := k.Dispatch(e, 0); n {
			any = true
		}
	}
	return any
}
