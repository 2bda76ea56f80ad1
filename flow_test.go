package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stepwiseFlow walks three resume points, awaiting a signal at the first
// and a condition at the second, before completing.
func stepwiseFlow(unlocked *bool) FlowFunc {
	return func(fc *FlowCtx, sig Signal) FlowStep {
		switch fc.Line() {
		case 0:
			return fc.AwaitSignal(1, SigUserBase)
		case 1:
			return fc.AwaitCondition(2, func() bool { return *unlocked })
		case 2:
			return fc.Done()
		}
		return fc.Done()
	}
}

func TestWrapFlowAwaitSignalGating(t *testing.T) {
	k := NewKernel(WithMaxEntities(2))
	unlocked := false
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Rules: []RuleDescriptor{{Signal: SigReset, Action: WrapFlow(stepwiseFlow(&unlocked))}}},
		},
		InitialState: 1,
	})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	// a signal other than SigUserBase must not advance past line 0.
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Equal(t, 1, e.flowLine)
	require.False(t, e.hasFlag(FlagFlowRunning))

	// re-entering with the SAME trigger must still not progress since the
	// await is keyed on SigUserBase, not SigReset.
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Equal(t, 1, e.flowLine)
}

func TestWrapFlowAwaitConditionGating(t *testing.T) {
	k := NewKernel(WithMaxEntities(2))
	unlocked := false
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Rules: []RuleDescriptor{{Signal: SigReset, Action: WrapFlow(stepwiseFlow(&unlocked))}}},
		},
		InitialState: 1,
	})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	require.NoError(t, k.Emit(1, newSignal(SigUserBase, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Equal(t, 2, e.flowLine)
	require.NotNil(t, e.flowCond)

	// condition false: a further dispatch must not advance or clear flowCond.
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Equal(t, 2, e.flowLine)
	require.NotNil(t, e.flowCond)

	// condition true: flow completes and clears all suspension state.
	unlocked = true
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Zero(t, e.flowAwaitN)
	require.Nil(t, e.flowCond)
	require.False(t, e.hasFlag(FlagFlowRunning))
}

func TestWrapFlowAwaitTimeGating(t *testing.T) {
	k := NewKernel(WithMaxEntities(2), WithClock(&stubClock{}))
	sc := k.Clock().(*stubClock)
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Rules: []RuleDescriptor{{Signal: SigReset, Action: WrapFlow(func(fc *FlowCtx, sig Signal) FlowStep {
				if fc.Line() == 0 {
					return fc.AwaitTime(1, 100)
				}
				return fc.Done()
			})}}},
		},
		InitialState: 1,
	})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.NotZero(t, e.flowWakeMs)

	sc.now = 50
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.NotZero(t, e.flowWakeMs, "must still be gated before the wake time")

	sc.now = 150
	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Zero(t, e.flowWakeMs)
}

func TestFlowGotoResetsFlowAndTransitions(t *testing.T) {
	k := NewKernel(WithMaxEntities(2))
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Rules: []RuleDescriptor{{Signal: SigReset, Action: WrapFlow(func(fc *FlowCtx, sig Signal) FlowStep {
				return fc.Goto(2)
			})}}},
			{ID: 2},
		},
		InitialState: 1,
	})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	require.NoError(t, k.Emit(1, newSignal(SigReset, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)
	require.Equal(t, StateID(2), e.State())
	require.Zero(t, e.flowLine)
}

// stubClock is a deterministic Clock for tests that need to control wake
// timestamps without real wall-clock waits.
type stubClock struct{ now int64 }

func (c *stubClock) NowMs() int64     { return c.now }
func (c *stubClock) InISRContext() bool { return false }
