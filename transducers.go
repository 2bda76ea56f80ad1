package reactor

import "fmt"

// transducers.go implements the standard middleware set every concrete
// entity composes from rather than hand-rolling: logging, debounce,
// throttle, and generic predicate filtering.

// LoggerMiddleware returns a middleware that logs every signal at
// LevelInfo, or - if filterSignal is nonzero - only that one. logPayload
// additionally logs the first payload word.
func LoggerMiddleware(filterSignal SignalID, logPayload bool) Middleware {
	return func(e *Entity, sig *Signal) MiddlewareResult {
		if filterSignal != 0 && sig.ID != filterSignal {
			return MWContinue
		}
		msg := fmt.Sprintf("sig=0x%04x src=%d", uint16(sig.ID), sig.Src)
		if logPayload {
			msg += fmt.Sprintf(" payload=0x%08x", sig.PayloadU32(0))
		}
		logAt(LevelInfo, "transducer", e.id, sig.ID, e.State(), msg, nil)
		return MWContinue
	}
}

// DebounceMiddleware returns a middleware that filters out occurrences of
// signalID arriving less than debounceMs after the last one it accepted.
// Signals other than signalID pass through untouched. The returned
// Middleware closes over its own last-accepted timestamp, so a fresh one
// must be constructed per entity - it is not safe to share between them.
func DebounceMiddleware(clock Clock, signalID SignalID, debounceMs int64) Middleware {
	var lastMs int64
	return func(e *Entity, sig *Signal) MiddlewareResult {
		if sig.ID != signalID {
			return MWContinue
		}
		now := clock.NowMs()
		if now-lastMs < debounceMs {
			logAt(LevelDebug, "transducer", e.id, sig.ID, e.State(), "debounce filtered", nil)
			return MWFiltered
		}
		lastMs = now
		return MWContinue
	}
}

// ThrottleMiddleware returns a middleware that passes at most one
// occurrence of signalID per intervalMs, counting (and logging, on the
// next pass) how many were dropped in between. Like DebounceMiddleware,
// each entity needs its own instance.
func ThrottleMiddleware(clock Clock, signalID SignalID, intervalMs int64) Middleware {
	var lastMs int64
	var dropped int
	return func(e *Entity, sig *Signal) MiddlewareResult {
		if sig.ID != signalID {
			return MWContinue
		}
		now := clock.NowMs()
		if now-lastMs < intervalMs {
			dropped++
			return MWFiltered
		}
		lastMs = now
		if dropped > 0 {
			logAt(LevelDebug, "transducer", e.id, sig.ID, e.State(),
				fmt.Sprintf("throttle passing after dropping %d", dropped), nil)
			dropped = 0
		}
		return MWContinue
	}
}

// FilterMiddleware returns a middleware that runs predicate over the
// entity and signal, passing when it reports true (or false, if invert is
// set) and filtering otherwise. A nil predicate always passes.
func FilterMiddleware(predicate func(e *Entity, sig *Signal) bool, invert bool) Middleware {
	return func(e *Entity, sig *Signal) MiddlewareResult {
		if predicate == nil {
			return MWContinue
		}
		pass := predicate(e, sig)
		if invert {
			pass = !pass
		}
		if pass {
			return MWContinue
		}
		return MWFiltered
	}
}
