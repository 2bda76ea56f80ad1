package reactor

// IsIn reports whether the entity's current state is id, or id is an
// ancestor of the current state along the parent chain.
func IsIn(e *Entity, id StateID) bool {
	cur := e.State()
	for {
		if cur == id {
			return true
		}
		st, ok := e.stateByID(cur)
		if !ok || st.Parent == 0 {
			return false
		}
		cur = st.Parent
	}
}

// lookupRule performs the cascading rule lookup described in §4.3:
//
//  1. Rules of the current state, in table order.
//  2. Rules of each attached mixin, mixins in priority-ascending order and
//     rules in table order.
//  3. The parent chain of the current state, walked upward one ancestor at
//     a time, each ancestor's rules searched in table order.
//
// Each ancestor is visited at most once, since parents form a tree rooted
// at parent id 0; a parent id of zero halts the walk. Returns the first
// matching rule, or ok=false if no table has a match.
func (e *Entity) lookupRule(sigID SignalID) (RuleDescriptor, bool) {
	cur, ok := e.stateByID(e.State())
	if !ok {
		return RuleDescriptor{}, false
	}

	if r, ok := findRule(cur.Rules, sigID); ok {
		return r, true
	}

	for _, m := range e.mixins {
		if r, ok := findRule(m.Rules, sigID); ok {
			return r, true
		}
	}

	parent := cur.Parent
	for parent != 0 {
		st, ok := e.stateByID(parent)
		if !ok {
			break
		}
		if r, ok := findRule(st.Rules, sigID); ok {
			return r, true
		}
		parent = st.Parent
	}

	return RuleDescriptor{}, false
}

func findRule(rules []RuleDescriptor, sigID SignalID) (RuleDescriptor, bool) {
	for _, r := range rules {
		if r.Signal == sigID {
			return r, true
		}
	}
	return RuleDescriptor{}, false
}
