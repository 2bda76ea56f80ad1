package reactor

// flow.go implements the stackless coroutine facility described in §4.5.
//
// Go has neither the original's stackless line-number macro trick nor a
// need for one: per design note §9, a flow body is modeled directly as a
// function from (scratchpad, signal, wake-clock) to one of {yield,
// await-signal(id), await-time(wake), await-cond(test), goto(state),
// done}. The body itself still encodes its resume points as a switch over
// FlowCtx.Line(), since that is the one piece of genuine state the
// original contract requires to survive across dispatcher invocations
// (the entity's flow-line field) - everything else about the C macro
// trick (textual source-location capture) has no counterpart here and is
// intentionally dropped.

// FlowStepKind names the suspension or termination a flow body requested.
type FlowStepKind int

const (
	FlowYield FlowStepKind = iota
	FlowAwaitSignal
	FlowAwaitTime
	FlowAwaitCondition
	FlowGoto
	FlowReset
	FlowDone
)

// FlowStep is the return value of one flow body invocation. Construct it
// via the FlowCtx helper methods (Yield, AwaitSignal, ...) rather than by
// hand.
type FlowStep struct {
	Kind  FlowStepKind
	State StateID // valid when Kind == FlowGoto
}

// maxAwaitAny is the fixed capacity of an entity's awaited-signal set, per
// §4.5's "implementation detail: up to 4".
const maxAwaitAny = 4

// FlowCtx is passed to a FlowFunc on every invocation. It exposes the
// suspension-point vocabulary and a typed view over the entity's
// scratchpad.
type FlowCtx struct {
	entity *Entity
	kernel *Kernel
}

// Line returns the resume point saved by the previous invocation (0 on
// first entry, or after Reset).
func (fc *FlowCtx) Line() int { return fc.entity.flowLine }

// Scratchpad returns the entity's flow-local persistent byte buffer.
func (fc *FlowCtx) Scratchpad() []byte { return fc.entity.scratchpad }

// NowMs returns the kernel clock's current time.
func (fc *FlowCtx) NowMs() int64 { return fc.kernel.clock.NowMs() }

// Yield saves line as the resume point and suspends; the next dispatch
// resumes here regardless of the delivered signal.
func (fc *FlowCtx) Yield(line int) FlowStep {
	fc.entity.flowLine = line
	return FlowStep{Kind: FlowYield}
}

// AwaitSignal saves line and id; subsequent dispatches return without
// invoking the body again until a signal with this id arrives, at which
// point the awaited id is cleared and the body resumes.
func (fc *FlowCtx) AwaitSignal(line int, id SignalID) FlowStep {
	fc.entity.flowLine = line
	fc.entity.flowAwait[0] = id
	fc.entity.flowAwaitN = 1
	return FlowStep{Kind: FlowAwaitSignal}
}

// AwaitAny is AwaitSignal generalized to a small fixed set of ids (up to
// maxAwaitAny); ids beyond the capacity are dropped.
func (fc *FlowCtx) AwaitAny(line int, ids ...SignalID) FlowStep {
	fc.entity.flowLine = line
	n := len(ids)
	if n > maxAwaitAny {
		n = maxAwaitAny
	}
	for i := 0; i < n; i++ {
		fc.entity.flowAwait[i] = ids[i]
	}
	fc.entity.flowAwaitN = n
	return FlowStep{Kind: FlowAwaitSignal}
}

// AwaitTime computes an absolute wake timestamp line milliseconds from
// now and saves it; dispatches before the clock reaches it return without
// invoking the body. Delivering the periodic SigTimeout system signal (see
// Kernel.Run) is how the dispatcher gives the coroutine a chance to
// re-check without polling.
func (fc *FlowCtx) AwaitTime(line int, ms int64) FlowStep {
	fc.entity.flowLine = line
	wake := fc.kernel.clock.NowMs() + ms
	fc.entity.flowWakeMs = wake
	fc.entity.nextEventMs.Store(wake)
	return FlowStep{Kind: FlowAwaitTime}
}

// AwaitCondition saves line and cond; the body is not invoked again until
// cond() returns true on some subsequent dispatch.
func (fc *FlowCtx) AwaitCondition(line int, cond func() bool) FlowStep {
	fc.entity.flowLine = line
	fc.entity.flowCond = cond
	return FlowStep{Kind: FlowAwaitCondition}
}

// Goto resets flow state and requests a forced transition to state.
func (fc *FlowCtx) Goto(state StateID) FlowStep {
	return FlowStep{Kind: FlowGoto, State: state}
}

// Reset restarts the flow from the top on the next dispatch.
func (fc *FlowCtx) Reset() FlowStep {
	return FlowStep{Kind: FlowReset}
}

// Done marks the flow complete; the flow-running flag is cleared.
func (fc *FlowCtx) Done() FlowStep {
	return FlowStep{Kind: FlowDone}
}

// WrapFlow adapts a FlowFunc into an Action usable as a RuleDescriptor's
// action or a StateDescriptor's OnEntry/OnExit, applying the
// suspension-point gating described above before invoking body.
func WrapFlow(body FlowFunc) Action {
	return func(e *Entity, sig Signal) StateID {
		return runFlow(e, body, sig)
	}
}

func runFlow(e *Entity, body FlowFunc, sig Signal) StateID {
	k := e.kernel
	fc := &FlowCtx{entity: e, kernel: k}

	if e.flowWakeMs != 0 {
		if k.clock.NowMs() < e.flowWakeMs {
			return 0
		}
		e.flowWakeMs = 0
		e.nextEventMs.Store(0)
	} else if e.flowAwaitN > 0 {
		matched := false
		for i := 0; i < e.flowAwaitN; i++ {
			if e.flowAwait[i] == sig.ID {
				matched = true
				break
			}
		}
		if !matched {
			return 0
		}
		e.flowAwaitN = 0
	} else if e.flowCond != nil {
		if !e.flowCond() {
			return 0
		}
		e.flowCond = nil
	}

	e.setFlag(FlagFlowRunning)
	step := body(fc, sig)

	switch step.Kind {
	case FlowGoto:
		e.resetFlow()
		return step.State
	case FlowReset:
		e.resetFlow()
		return 0
	case FlowDone:
		e.clearFlag(FlagFlowRunning)
		return 0
	default: // Yield, AwaitSignal, AwaitTime, AwaitCondition
		return 0
	}
}
