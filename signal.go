package reactor

import "encoding/binary"

// SignalID identifies the kind of a Signal. 0x0001-0x00FF are reserved for
// system signals; 0x0100 and above are user-defined.
type SignalID uint16

// Reserved system signal ids, per the external interface contract.
const (
	SigNone    SignalID = 0x0000
	SigInit    SignalID = 0x0001
	SigEntry   SignalID = 0x0002
	SigExit    SignalID = 0x0003
	SigTick    SignalID = 0x0004
	SigTimeout SignalID = 0x0005
	SigDying   SignalID = 0x0006
	SigRevive  SignalID = 0x0007
	SigReset   SignalID = 0x0008
	SigSuspend SignalID = 0x0009
	SigResume  SignalID = 0x000A

	SigParamChanged SignalID = 0x0020
	SigParamReady   SignalID = 0x0021

	SigUserBase SignalID = 0x0100
)

// IsSystem reports whether id falls in the reserved system range
// 0x0001..0x00FF.
func (id SignalID) IsSystem() bool { return id >= SigInit && id < SigUserBase }

// IsUser reports whether id is a user-defined signal (>= 0x0100).
func (id SignalID) IsUser() bool { return id >= SigUserBase }

// DefaultPayloadWidth is the compile-time-constant payload width used
// unless a Kernel is constructed with WithPayloadWidth.
const DefaultPayloadWidth = 4

// Signal is a fixed-size, value-copied record produced at emission time.
// Once constructed it is never mutated except by a TRANSFORM middleware,
// which rewrites the in-flight copy before rule matching.
type Signal struct {
	ID        SignalID
	Src       EntityID // 0 denotes external/anonymous
	Payload   []byte   // compile-time-constant width, shared with Kernel.payloadWidth
	Ext       any      // caller-owned external reference; the kernel never inspects or frees it
	TimestampMs int64
}

// newSignal builds a zero-payload Signal of the given width.
func newSignal(id SignalID, src EntityID, width int) Signal {
	return Signal{ID: id, Src: src, Payload: make([]byte, width)}
}

// clone returns a value copy of s with its own payload backing array, since
// Payload is a slice and Go slices alias their backing array on assignment.
func (s Signal) clone() Signal {
	out := s
	out.Payload = append([]byte(nil), s.Payload...)
	return out
}

// PayloadU8 reads a single byte at offset i.
func (s Signal) PayloadU8(i int) uint8 {
	if i < 0 || i >= len(s.Payload) {
		return 0
	}
	return s.Payload[i]
}

// SetPayloadU8 writes a single byte at offset i, extending the payload if
// it is shorter than required (bounded by cap).
func (s *Signal) SetPayloadU8(i int, v uint8) {
	s.ensurePayload(i + 1)
	s.Payload[i] = v
}

// PayloadU16 reads a little-endian uint16 starting at byte offset i.
func (s Signal) PayloadU16(i int) uint16 {
	if i < 0 || i+2 > len(s.Payload) {
		return 0
	}
	return binary.LittleEndian.Uint16(s.Payload[i:])
}

// SetPayloadU16 writes a little-endian uint16 starting at byte offset i.
func (s *Signal) SetPayloadU16(i int, v uint16) {
	s.ensurePayload(i + 2)
	binary.LittleEndian.PutUint16(s.Payload[i:], v)
}

// PayloadU32 reads a little-endian uint32 starting at byte offset i.
func (s Signal) PayloadU32(i int) uint32 {
	if i < 0 || i+4 > len(s.Payload) {
		return 0
	}
	return binary.LittleEndian.Uint32(s.Payload[i:])
}

// SetPayloadU32 writes a little-endian uint32 starting at byte offset i.
func (s *Signal) SetPayloadU32(i int, v uint32) {
	s.ensurePayload(i + 4)
	binary.LittleEndian.PutUint32(s.Payload[i:], v)
}

// PayloadI8, PayloadI16, PayloadI32 reinterpret the same bytes as signed
// integers of the corresponding width.
func (s Signal) PayloadI8(i int) int8   { return int8(s.PayloadU8(i)) }
func (s Signal) PayloadI16(i int) int16 { return int16(s.PayloadU16(i)) }
func (s Signal) PayloadI32(i int) int32 { return int32(s.PayloadU32(i)) }

func (s *Signal) ensurePayload(n int) {
	if len(s.Payload) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, s.Payload)
	s.Payload = grown
}
