package reactor

import (
	"sort"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ACLAction names the effect of a matched rule or the default policy.
type ACLAction int

const (
	ACLAllow ACLAction = iota
	ACLDeny
	ACLLog
	ACLTransform
)

// ACLRuleFlag is an 8-bit bitmask of optional rule behaviors, consulted in
// addition to a rule's Action.
type ACLRuleFlag uint8

const (
	// ACLFlagLog emits a rate-limited log line (via go-catrate, keyed by
	// the matching rule's signal predicate) whenever the rule matches,
	// independent of its Action.
	ACLFlagLog ACLRuleFlag = 1 << iota
	// ACLFlagCount increments ACLStats.Counted whenever the rule matches.
	ACLFlagCount
	// ACLFlagOneshot disables the rule after its first match; subsequent
	// signals fall through to the next rule (or the default policy).
	ACLFlagOneshot
)

// SourcePredicate classifies a signal's source for ACL matching.
type SourcePredicate int

const (
	SourceAny SourcePredicate = iota
	SourceLocal
	SourceExternal
	SourceLiteral
)

// SignalPredicate classifies a signal's id for ACL matching.
type SignalPredicate int

const (
	SignalAny SignalPredicate = iota
	SignalSystem
	SignalUser
	SignalLiteral
)

// ACLRule is one priority-ordered entry in an entity's rule list.
type ACLRule struct {
	Priority  uint8
	SrcPred   SourcePredicate
	SrcLit    EntityID // consulted when SrcPred == SourceLiteral
	SigPred   SignalPredicate
	SigLit    SignalID // consulted when SigPred == SignalLiteral
	Action    ACLAction
	Flags     ACLRuleFlag
	Transform func(sig *Signal) bool // consulted when Action == ACLTransform; returns pass/block

	consumed bool // set once an ACLFlagOneshot rule has fired
}

type aclPolicy struct {
	rules     []ACLRule
	def       ACLAction
	transform func(sig *Signal) bool
}

// ACLStats aggregates match-outcome counters across every entity's rule
// evaluations (§8 scenario 5's stats.denied among them).
type ACLStats struct {
	Allowed int
	Denied  int
	Logged  int
	Counted int
}

// ACLTable holds a per-target-entity rule list plus default policy,
// per §4.11. Unknown entities degrade open (default ALLOW) per §4.15's
// deliberate fail-open choice; callers that need fail-closed behavior
// must explicitly configure that entity's default policy.
type ACLTable struct {
	maxRules    int
	maxEntities int

	mu       sync.Mutex
	policies map[EntityID]*aclPolicy
	stats    ACLStats
	limiter  *catrate.Limiter
}

func newACLTable(maxRules int) *ACLTable {
	return &ACLTable{
		maxRules: maxRules,
		policies: make(map[EntityID]*aclPolicy),
		// Rate-limits ACLFlagLog output per signal id so a hot signal
		// matching a LOG-flagged rule cannot flood the log sink.
		limiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 5}),
	}
}

// setEntityCap records the kernel's entity-cap constant N, used to
// distinguish SourceLocal (source id in [1..N]) from SourceExternal
// (source id is 0 or > N). Called once by NewKernel.
func (a *ACLTable) setEntityCap(n int) { a.maxEntities = n }

// SetDefault configures entity's default policy and optional transform
// callback (consulted when the default itself is ACLTransform).
func (a *ACLTable) SetDefault(entity EntityID, def ACLAction, transform func(sig *Signal) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.policyFor(entity)
	p.def = def
	p.transform = transform
}

// AddRule appends rule to entity's rule list, keeping it priority-sorted
// (lower Priority considered first). Fails with ErrNoMemory if the rule
// list is already at capacity.
func (a *ACLTable) AddRule(entity EntityID, rule ACLRule) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.policyFor(entity)
	if len(p.rules) >= a.maxRules {
		return WrapError("acl add rule", ErrNoMemory)
	}
	p.rules = append(p.rules, rule)
	sort.SliceStable(p.rules, func(i, j int) bool { return p.rules[i].Priority < p.rules[j].Priority })
	return nil
}

// Stats returns a snapshot of cumulative ALLOW/DENY/LOG/COUNT outcomes
// across every Check/Filter call this table has evaluated.
func (a *ACLTable) Stats() ACLStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *ACLTable) policyFor(entity EntityID) *aclPolicy {
	p, ok := a.policies[entity]
	if !ok {
		p = &aclPolicy{def: ACLAllow}
		a.policies[entity] = p
	}
	return p
}

type aclEvaluation struct {
	action    ACLAction
	transform func(sig *Signal) bool
}

// evaluate runs entity's rule list against sig, applying LOG/COUNT/ONESHOT
// flags and stats bookkeeping for the first matching, not-yet-consumed
// rule, falling back to the entity's default policy. One evaluate call
// backs both Check and Filter so their outcomes (and side effects) agree.
func (a *ACLTable) evaluate(entity EntityID, sig *Signal) aclEvaluation {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.policies[entity]
	if !ok {
		a.stats.Allowed++
		return aclEvaluation{action: ACLAllow}
	}
	for i := range p.rules {
		r := &p.rules[i]
		if r.consumed {
			continue
		}
		if a.matchSource(r.SrcPred, r.SrcLit, sig.Src) && matchSignal(r.SigPred, r.SigLit, sig.ID) {
			a.applyFlagsLocked(entity, sig.ID, r.Flags)
			if r.Flags&ACLFlagOneshot != 0 {
				r.consumed = true
			}
			a.recordOutcomeLocked(r.Action)
			return aclEvaluation{action: r.Action, transform: r.Transform}
		}
	}
	a.recordOutcomeLocked(p.def)
	return aclEvaluation{action: p.def, transform: p.transform}
}

func (a *ACLTable) applyFlagsLocked(entity EntityID, sigID SignalID, flags ACLRuleFlag) {
	if flags&ACLFlagCount != 0 {
		a.stats.Counted++
	}
	if flags&ACLFlagLog != 0 {
		if _, ok := a.limiter.Allow(sigID); ok {
			a.stats.Logged++
			logAt(LevelInfo, "acl", entity, sigID, 0, "acl rule matched", nil)
		}
	}
}

func (a *ACLTable) recordOutcomeLocked(action ACLAction) {
	if action == ACLDeny {
		a.stats.Denied++
		return
	}
	a.stats.Allowed++
}

// Check returns the action of the first not-yet-consumed rule whose source
// and signal predicates both match, or the entity's default policy if none
// do. An entity with no configured policy defaults to ACLAllow.
func (a *ACLTable) Check(entity EntityID, sig Signal) ACLAction {
	return a.evaluate(entity, &sig).action
}

// Filter reduces Check's result to a pass/block boolean: ALLOW and LOG
// pass, DENY blocks, TRANSFORM invokes the matched or default transform
// callback (which may mutate sig) and passes accordingly.
func (a *ACLTable) Filter(entity EntityID, sig *Signal) bool {
	res := a.evaluate(entity, sig)
	switch res.action {
	case ACLAllow, ACLLog:
		return true
	case ACLDeny:
		return false
	case ACLTransform:
		if res.transform == nil {
			return true
		}
		return res.transform(sig)
	default:
		return true
	}
}

func (a *ACLTable) matchSource(pred SourcePredicate, lit EntityID, src EntityID) bool {
	switch pred {
	case SourceAny:
		return true
	case SourceLocal:
		if a.maxEntities > 0 {
			return src >= 1 && int(src) <= a.maxEntities
		}
		return src >= 1
	case SourceExternal:
		if a.maxEntities > 0 {
			return src == 0 || int(src) > a.maxEntities
		}
		return src == 0
	case SourceLiteral:
		return src == lit
	default:
		return false
	}
}

func matchSignal(pred SignalPredicate, lit SignalID, id SignalID) bool {
	switch pred {
	case SignalAny:
		return true
	case SignalSystem:
		return id.IsSystem()
	case SignalUser:
		return id.IsUser()
	case SignalLiteral:
		return id == lit
	default:
		return false
	}
}

// Middleware adapts the ACL table to the entity middleware chain,
// intended to be registered at the highest priority so ACL evaluation
// runs before any other middleware or rule matching.
func (a *ACLTable) Middleware() Middleware {
	return func(e *Entity, sig *Signal) MiddlewareResult {
		if a.Filter(e.id, sig) {
			return MWContinue
		}
		return MWFiltered
	}
}
