package reactor

import (
	"fmt"
	"strings"
	"sync"
)

// TraceEventType tags what kind of 4-byte payload a TraceEvent carries.
type TraceEventType int

const (
	TraceDispatchStart TraceEventType = iota
	TraceDispatchEnd
	TraceTransition
	TraceMarker
	TraceCounter
)

// TraceEvent is one fixed-size ring record: a microsecond timestamp, the
// entity it concerns, a type tag, and 4 bytes of type-specific data
// (signal id + src for dispatch events, from-state + to-state for
// transitions, a marker hash, or a counter value).
type TraceEvent struct {
	TimestampUs int64
	Entity      EntityID
	Type        TraceEventType
	Data        [4]byte
}

// SignalOf decodes Data as (signal id, src) for TraceDispatchStart/End
// events.
func (e TraceEvent) SignalOf() (SignalID, EntityID) {
	return SignalID(getU16(e.Data[0:2])), EntityID(getU16(e.Data[2:4]))
}

// TransitionOf decodes Data as (from-state, to-state) for TraceTransition
// events.
func (e TraceEvent) TransitionOf() (StateID, StateID) {
	return StateID(getU16(e.Data[0:2])), StateID(getU16(e.Data[2:4]))
}

// TraceStats accumulates recording activity.
type TraceStats struct {
	Recorded        int
	Dropped         int
	BytesWritten    int64
	LongestDispatchUs int64
	LongestEntity     EntityID
	LongestSignal     SignalID
}

// Trace is the fixed-capacity ring buffer of §4.13. Recording is a no-op
// unless Enabled is true.
type Trace struct {
	mu       sync.Mutex
	buf      []TraceEvent
	head     int
	count    int
	enabled  bool
	stats    TraceStats
	pending  map[EntityID]int64 // entity -> dispatch-start timestamp, for duration tracking
}

func newTrace(capacity int) *Trace {
	if capacity <= 0 {
		capacity = 1
	}
	return &Trace{buf: make([]TraceEvent, capacity), pending: make(map[EntityID]int64)}
}

// SetEnabled toggles recording.
func (t *Trace) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Enabled reports whether recording is active.
func (t *Trace) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Trace) record(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.count == len(t.buf) {
		// ring full: overwrite oldest, count the drop
		t.stats.Dropped++
		t.buf[t.head] = ev
		t.head = (t.head + 1) % len(t.buf)
	} else {
		idx := (t.head + t.count) % len(t.buf)
		t.buf[idx] = ev
		t.count++
	}
	t.stats.Recorded++
	t.stats.BytesWritten += 16
}

// RecordDispatchStart records the start of a dispatch and remembers the
// timestamp for RecordDispatchEnd's duration bookkeeping.
func (t *Trace) RecordDispatchStart(tsUs int64, entity EntityID, sig SignalID, src EntityID) {
	var data [4]byte
	putU16(data[0:2], uint16(sig))
	putU16(data[2:4], uint16(src))
	t.record(TraceEvent{TimestampUs: tsUs, Entity: entity, Type: TraceDispatchStart, Data: data})
	t.mu.Lock()
	t.pending[entity] = tsUs
	t.mu.Unlock()
}

// RecordDispatchEnd records the end of a dispatch and updates the
// longest-observed-duration statistic.
func (t *Trace) RecordDispatchEnd(tsUs int64, entity EntityID, sig SignalID, src EntityID) {
	var data [4]byte
	putU16(data[0:2], uint16(sig))
	putU16(data[2:4], uint16(src))
	t.record(TraceEvent{TimestampUs: tsUs, Entity: entity, Type: TraceDispatchEnd, Data: data})

	t.mu.Lock()
	start, ok := t.pending[entity]
	if ok {
		delete(t.pending, entity)
	}
	if ok {
		dur := tsUs - start
		if dur > t.stats.LongestDispatchUs {
			t.stats.LongestDispatchUs = dur
			t.stats.LongestEntity = entity
			t.stats.LongestSignal = sig
		}
	}
	t.mu.Unlock()
}

// RecordTransition records a state transition.
func (t *Trace) RecordTransition(tsUs int64, entity EntityID, from, to StateID) {
	var data [4]byte
	putU16(data[0:2], uint16(from))
	putU16(data[2:4], uint16(to))
	t.record(TraceEvent{TimestampUs: tsUs, Entity: entity, Type: TraceTransition, Data: data})
}

// RecordMarker records an opaque application-defined marker.
func (t *Trace) RecordMarker(tsUs int64, entity EntityID, hash uint32) {
	var data [4]byte
	binaryPutU32(data[:], hash)
	t.record(TraceEvent{TimestampUs: tsUs, Entity: entity, Type: TraceMarker, Data: data})
}

// RecordCounter records a counter sample.
func (t *Trace) RecordCounter(tsUs int64, entity EntityID, value uint32) {
	var data [4]byte
	binaryPutU32(data[:], value)
	t.record(TraceEvent{TimestampUs: tsUs, Entity: entity, Type: TraceCounter, Data: data})
}

// Stats returns a snapshot of the trace's activity counters.
func (t *Trace) Stats() TraceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// snapshot returns the buffered events in chronological order.
func (t *Trace) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.buf[(t.head+i)%len(t.buf)]
	}
	return out
}

// ExportRaw returns the ring's buffered events as a flat byte slice, one
// 16-byte record per event (an 8-byte timestamp, 2-byte entity id,
// 1-byte type tag, 1 pad byte, and the 4-byte type-specific payload).
func (t *Trace) ExportRaw() []byte {
	events := t.snapshot()
	out := make([]byte, 0, len(events)*16)
	for _, ev := range events {
		var rec [16]byte
		binaryPutU64(rec[0:8], uint64(ev.TimestampUs))
		putU16(rec[8:10], uint16(ev.Entity))
		rec[10] = byte(ev.Type)
		copy(rec[12:16], ev.Data[:])
		out = append(out, rec[:]...)
	}
	return out
}

// ExportText renders one line per event, using names to resolve entity
// and signal ids to display names where registered.
func (t *Trace) ExportText(names *Names) string {
	events := t.snapshot()
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%d %s", ev.TimestampUs, names.EntityName(ev.Entity))
		switch ev.Type {
		case TraceDispatchStart:
			sig, src := ev.SignalOf()
			fmt.Fprintf(&b, " dispatch_start sig=%s src=%s\n", names.SignalName(sig), names.EntityName(src))
		case TraceDispatchEnd:
			sig, src := ev.SignalOf()
			fmt.Fprintf(&b, " dispatch_end sig=%s src=%s\n", names.SignalName(sig), names.EntityName(src))
		case TraceTransition:
			from, to := ev.TransitionOf()
			fmt.Fprintf(&b, " transition %d->%d\n", from, to)
		case TraceMarker:
			fmt.Fprintf(&b, " marker 0x%08x\n", binaryGetU32(ev.Data[:]))
		case TraceCounter:
			fmt.Fprintf(&b, " counter %d\n", binaryGetU32(ev.Data[:]))
		}
	}
	return b.String()
}

// ExportChrome renders the ring as a Chrome Trace Event Format document
// ({"traceEvents": [...]}), using B/E phases for dispatch start/end pairs
// and instant ("I") phase for everything else.
func (t *Trace) ExportChrome(names *Names) string {
	events := t.snapshot()
	var b strings.Builder
	b.WriteString(`{"traceEvents":[`)
	for i, ev := range events {
		if i > 0 {
			b.WriteByte(',')
		}
		switch ev.Type {
		case TraceDispatchStart:
			sig, _ := ev.SignalOf()
			fmt.Fprintf(&b, `{"name":%q,"ph":"B","ts":%d,"pid":1,"tid":%d}`,
				names.SignalName(sig), ev.TimestampUs, ev.Entity)
		case TraceDispatchEnd:
			sig, _ := ev.SignalOf()
			fmt.Fprintf(&b, `{"name":%q,"ph":"E","ts":%d,"pid":1,"tid":%d}`,
				names.SignalName(sig), ev.TimestampUs, ev.Entity)
		case TraceTransition:
			from, to := ev.TransitionOf()
			fmt.Fprintf(&b, `{"name":"transition","ph":"I","ts":%d,"pid":1,"tid":%d,"args":{"from":%d,"to":%d}}`,
				ev.TimestampUs, ev.Entity, from, to)
		default:
			fmt.Fprintf(&b, `{"name":"event","ph":"I","ts":%d,"pid":1,"tid":%d,"args":{"data":%d}}`,
				ev.TimestampUs, ev.Entity, binaryGetU32(ev.Data[:]))
		}
	}
	b.WriteString(`]}`)
	return b.String()
}

func binaryPutU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func binaryGetU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func binaryPutU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
