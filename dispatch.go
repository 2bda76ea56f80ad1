package reactor

// dispatch.go implements the per-entity dispatch protocol of §4.2: run the
// middleware chain, perform cascading rule lookup (§4.3), invoke the
// matched action, and - if the action calls for a different state - run
// the exit/entry transition protocol.

// Dispatch processes at most one pending signal for entity, blocking up to
// waitMs milliseconds for one to arrive if the inbox is currently empty
// (0 = non-blocking, equivalent to a bare TryPop). Inbox dequeue-with-
// timeout is one of the few legitimate suspension points in the whole
// system; the single-flight guard below is per-entity, so a Dispatch
// blocked waiting on one entity's inbox never holds up a concurrent
// Dispatch call against any other entity.
// Returns processed=true if a signal was popped and run through the
// pipeline, false if the inbox stayed empty for the whole wait or a
// dispatch was already in flight for this entity.
func (k *Kernel) Dispatch(e *Entity, waitMs int64) (processed bool, err error) {
	if !e.dispatchLock.CompareAndSwap(false, true) {
		// Another goroutine is already dispatching this entity; the
		// concurrency model guarantees at most one in-flight Dispatch
		// per entity, so this call simply declines to do anything.
		return false, nil
	}
	defer e.dispatchLock.Store(false)

	if !e.Active() || e.Suspended() {
		return false, nil
	}

	sig, ok := e.inbox.WaitPop(waitMs)
	if !ok {
		return false, nil
	}

	startUs := k.clock.NowMs() * 1000
	k.trace.RecordDispatchStart(startUs, e.id, sig.ID, sig.Src)
	defer func() { k.trace.RecordDispatchEnd(k.clock.NowMs()*1000, e.id, sig.ID, sig.Src) }()

	k.panic.note(PanicRecord{Entity: e.id, State: e.State(), Signal: sig.ID, TimestampMs: sig.TimestampMs})

	if outcome := runMiddleware(e, &sig); outcome != mwOutcomeContinue {
		logAt(LevelDebug, "dispatch", e.id, sig.ID, e.State(), "middleware stopped chain", nil)
		return true, nil
	}

	rule, matched := e.lookupRule(sig.ID)

	var next StateID
	switch {
	case matched:
		next = rule.Next
		if rule.Action != nil {
			if r := rule.Action(e, sig); r != 0 {
				next = r
			}
		}
	case e.flow != nil:
		// No table rule claimed this signal; the entity's flow coroutine
		// is the catch-all handler for everything else it is awaiting.
		next = runFlow(e, e.flow, sig)
	default:
		logAt(LevelDebug, "dispatch", e.id, sig.ID, e.State(), "no matching rule", nil)
		return true, nil
	}

	if next != 0 && next != e.State() {
		k.transition(e, next)
	}

	return true, nil
}

// transition runs the exit/entry protocol: the current state's on-exit
// action with a synthesized EXIT signal, a flow-state reset, the state
// swap itself, and the new state's on-entry action with a synthesized
// ENTRY signal.
func (k *Kernel) transition(e *Entity, next StateID) {
	width := k.opts.payloadWidth
	from := e.State()

	if cur, ok := e.stateByID(from); ok && cur.OnExit != nil {
		cur.OnExit(e, newSignal(SigExit, e.id, width))
	}

	e.resetFlow()
	e.current.Store(uint32(next))

	if nst, ok := e.stateByID(next); ok && nst.OnEntry != nil {
		nst.OnEntry(e, newSignal(SigEntry, e.id, width))
	}

	k.trace.RecordTransition(k.clock.NowMs()*1000, e.id, from, next)
	logAt(LevelDebug, "dispatch", e.id, SigNone, next, "state transition", nil)
}

// DispatchAll drains entity's inbox, running Dispatch until it reports no
// more signals were processed.
func (k *Kernel) DispatchAll(e *Entity) {
	for {
		processed, err := k.Dispatch(e, 0)
		if err != nil || !processed {
			return
		}
	}
}
