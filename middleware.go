package reactor

import "sort"

// AddMiddleware appends entry to e's chain, keeping it priority-sorted
// (lower Priority runs earlier). Middleware is ordinarily supplied via
// EntityConfig.Middleware at construction time; this is exposed for
// composing ACL/Wormhole adapters (acl.go, wormhole.go) onto an entity
// that was already built.
func (e *Entity) AddMiddleware(entry MiddlewareEntry) {
	e.middleware = append(e.middleware, entry)
	sort.SliceStable(e.middleware, func(i, j int) bool { return e.middleware[i].Priority < e.middleware[j].Priority })
}

// SetMiddlewareEnabled toggles the named middleware entry's Enabled flag.
// Returns false if no entry with that name exists.
func (e *Entity) SetMiddlewareEnabled(name string, enabled bool) bool {
	for i := range e.middleware {
		if e.middleware[i].Name == name {
			e.middleware[i].Enabled = enabled
			return true
		}
	}
	return false
}

// middlewareOutcome is the result of running the full chain.
type middlewareOutcome int

const (
	mwOutcomeContinue middlewareOutcome = iota
	mwOutcomeHandled
	mwOutcomeFiltered
)

// runMiddleware runs e's chain, in priority order, over sig (mutated in
// place on MWTransform). HANDLED and FILTERED stop the chain immediately
// and never reach rule matching.
func runMiddleware(e *Entity, sig *Signal) middlewareOutcome {
	for _, entry := range e.middleware {
		if !entry.Enabled || entry.Fn == nil {
			continue
		}
		switch entry.Fn(e, sig) {
		case MWContinue:
			continue
		case MWTransform:
			continue
		case MWHandled:
			return mwOutcomeHandled
		case MWFiltered:
			return mwOutcomeFiltered
		}
	}
	return mwOutcomeContinue
}
