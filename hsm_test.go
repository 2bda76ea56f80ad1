package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHSMEntity(t *testing.T) *Entity {
	t.Helper()
	k := NewKernel(WithMaxEntities(4))
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Parent: 0, Rules: []RuleDescriptor{{Signal: SigTick, Next: 1}}},
			{ID: 2, Parent: 1, Rules: []RuleDescriptor{{Signal: SigReset, Next: 1}}},
			{ID: 3, Parent: 2},
		},
		InitialState: 3,
	})
	require.NoError(t, err)
	return e
}

func TestIsInWalksParentChain(t *testing.T) {
	e := buildHSMEntity(t)
	require.True(t, IsIn(e, 3))
	require.True(t, IsIn(e, 2))
	require.True(t, IsIn(e, 1))
	require.False(t, IsIn(e, 99))
}

func TestLookupRuleCascadesThroughAncestors(t *testing.T) {
	e := buildHSMEntity(t)

	// state 3 has no rules of its own; SigReset is declared on state 2.
	rule, ok := e.lookupRule(SigReset)
	require.True(t, ok)
	require.Equal(t, StateID(1), rule.Next)

	// SigTick is only declared on state 1, two levels up.
	rule, ok = e.lookupRule(SigTick)
	require.True(t, ok)
	require.Equal(t, StateID(1), rule.Next)

	_, ok = e.lookupRule(SigDying)
	require.False(t, ok)
}

func TestLookupRuleConsultsMixinsBeforeParentChain(t *testing.T) {
	k := NewKernel(WithMaxEntities(4))
	e, err := k.AddEntity(EntityConfig{
		ID: 1,
		States: []StateDescriptor{
			{ID: 1, Parent: 0, Rules: []RuleDescriptor{{Signal: SigTick, Next: 2}}},
			{ID: 2, Parent: 1},
		},
		Mixins: []Mixin{
			{Name: "common", Priority: 0, Rules: []RuleDescriptor{{Signal: SigTick, Next: 1}}},
		},
		InitialState: 2,
	})
	require.NoError(t, err)

	rule, ok := e.lookupRule(SigTick)
	require.True(t, ok)
	require.Equal(t, StateID(1), rule.Next, "mixin rule must win over the parent-chain rule")
}
