package reactor

import "sync"

// PanicRecord is one entry of the panic/black-box recorder's ring: the
// last-known dispatch context at the moment Kernel.Panic was invoked.
type PanicRecord struct {
	Entity      EntityID
	State       StateID
	Signal      SignalID
	TimestampMs int64
}

// PanicRecorder holds a fixed-capacity ring of the most recent dispatch
// contexts, independent of and parallel to Trace (§4.13): where Trace is
// an optional, toggleable diagnostic stream, the panic recorder is always
// live and cheap, existing solely to give Kernel.Panic something concrete
// to hand to its hook - the "black box" described in spec.md §7 as the
// escape hatch of last resort.
type PanicRecorder struct {
	mu   sync.Mutex
	buf  []PanicRecord
	head int
	count int
}

func newPanicRecorder(capacity int) *PanicRecorder {
	if capacity <= 0 {
		capacity = 1
	}
	return &PanicRecorder{buf: make([]PanicRecord, capacity)}
}

// note records one dispatch context into the ring, overwriting the oldest
// entry once full. Called by Kernel.Dispatch on every signal delivery so
// the ring always reflects recent activity by the time Panic is called.
func (p *PanicRecorder) note(rec PanicRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == len(p.buf) {
		p.buf[p.head] = rec
		p.head = (p.head + 1) % len(p.buf)
		return
	}
	idx := (p.head + p.count) % len(p.buf)
	p.buf[idx] = rec
	p.count++
}

// Snapshot returns the recorded contexts in chronological order, oldest
// first.
func (p *PanicRecorder) Snapshot() []PanicRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PanicRecord, p.count)
	for i := 0; i < p.count; i++ {
		out[i] = p.buf[(p.head+i)%len(p.buf)]
	}
	return out
}

// Panic captures the panic recorder's current ring and invokes hook with
// it, giving the caller a chance to persist or inspect recent dispatch
// history before deciding whether to halt. Kernel.Panic never halts the
// process itself; that decision belongs entirely to hook's caller.
func (k *Kernel) Panic(hook func([]PanicRecord)) {
	if hook == nil {
		return
	}
	hook(k.panic.Snapshot())
}
