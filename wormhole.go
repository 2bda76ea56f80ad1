package reactor

import (
	"encoding/binary"
	"sync"
)

// wormSync is the sync byte of the cross-chip wormhole frame.
const wormSync = 0xAA

// crc8 computes CRC-8 (polynomial 0x07, initial 0) over data, used by the
// wormhole frame. Hand-rolled for the same reason as crc16CCITT in
// codec.go: no pack dependency exposes this exact bit-level checksum, and
// importing one for an eight-line loop would not meaningfully exercise it
// as a library - see DESIGN.md.
func crc8(data []byte) uint8 {
	crc := uint8(0)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Channel is the byte-stream transport a Wormhole route sends frames over
// and reads them back from - typically a UART, a socket, or (in tests) an
// in-memory pipe.
type Channel interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// wormRoute binds a local entity to a remote entity over a channel.
type wormRoute struct {
	local   EntityID
	remote  EntityID
	channel Channel
}

// Wormhole implements the symmetric cross-chip link of §4.12: a route
// table plus a 10-byte CRC-8 framed wire format.
type Wormhole struct {
	kernel   *Kernel
	maxRoutes int

	mu     sync.RWMutex
	routes []wormRoute
}

func newWormhole(k *Kernel, maxRoutes int) *Wormhole {
	return &Wormhole{kernel: k, maxRoutes: maxRoutes}
}

// AddRoute binds local and remote entity ids over channel. Fails with
// ErrNoMemory if the route table is full.
func (w *Wormhole) AddRoute(local, remote EntityID, channel Channel) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.routes) >= w.maxRoutes {
		return WrapError("wormhole add route", ErrNoMemory)
	}
	w.routes = append(w.routes, wormRoute{local: local, remote: remote, channel: channel})
	return nil
}

func (w *Wormhole) routeByLocal(local EntityID) (wormRoute, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, r := range w.routes {
		if r.local == local {
			return r, true
		}
	}
	return wormRoute{}, false
}

func (w *Wormhole) routeByRemote(remote EntityID) (wormRoute, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, r := range w.routes {
		if r.remote == remote {
			return r, true
		}
	}
	return wormRoute{}, false
}

// encodeFrame builds the 10-byte frame
// [0xAA][src_id:2 LE][sig_id:2 LE][payload:4 LE][crc8], where the CRC
// covers bytes 1..8 (everything after the sync byte except itself).
func encodeWormFrame(src EntityID, sigID SignalID, payload []byte) []byte {
	frame := make([]byte, 10)
	frame[0] = wormSync
	binary.LittleEndian.PutUint16(frame[1:3], uint16(src))
	binary.LittleEndian.PutUint16(frame[3:5], uint16(sigID))
	var p [4]byte
	copy(p[:], payload)
	copy(frame[5:9], p[:])
	frame[9] = crc8(frame[1:9])
	return frame
}

func decodeWormFrame(frame []byte) (src EntityID, sigID SignalID, payload []byte, ok bool) {
	if len(frame) < 10 || frame[0] != wormSync {
		return 0, 0, nil, false
	}
	if crc8(frame[1:9]) != frame[9] {
		return 0, 0, nil, false
	}
	src = EntityID(binary.LittleEndian.Uint16(frame[1:3]))
	sigID = SignalID(binary.LittleEndian.Uint16(frame[3:5]))
	payload = append([]byte(nil), frame[5:9]...)
	return src, sigID, payload, true
}

// Send serializes sig and writes it over the route bound to remote,
// tagging the frame with sig.Src as the local source id. Fails with
// ErrNotFound if no route targets remote.
func (w *Wormhole) Send(remote EntityID, sig Signal) error {
	route, ok := w.routeByRemote(remote)
	if !ok {
		return &NotFoundError{Kind: "wormhole route", ID: remote}
	}
	frame := encodeWormFrame(sig.Src, sig.ID, sig.Payload)
	_, err := route.channel.Write(frame)
	if err != nil {
		return WrapError("wormhole send", err)
	}
	return nil
}

// Receive reads one frame from local's bound channel, resyncing on the
// sync byte, validates its CRC, and - on success - emits the decoded
// signal into the local entity bound by the route whose remote id
// matches the frame's source id. Returns ErrInvalidArg on CRC failure or
// if no inbound route matches the frame's source.
func (w *Wormhole) Receive(local EntityID) error {
	route, ok := w.routeByLocal(local)
	if !ok {
		return &NotFoundError{Kind: "wormhole route", ID: local}
	}
	buf := make([]byte, 1)
	for {
		n, err := route.channel.Read(buf)
		if err != nil {
			return WrapError("wormhole receive", err)
		}
		if n == 0 {
			continue
		}
		if buf[0] == wormSync {
			break
		}
	}
	rest := make([]byte, 9)
	if err := readFull(route.channel, rest); err != nil {
		return WrapError("wormhole receive", err)
	}
	frame := append([]byte{wormSync}, rest...)
	src, sigID, payload, ok := decodeWormFrame(frame)
	if !ok {
		return WrapError("wormhole receive", ErrInvalidArg)
	}
	inRoute, ok := w.routeByRemote(src)
	if !ok {
		return &NotFoundError{Kind: "wormhole inbound route", ID: src}
	}
	return w.kernel.Emit(inRoute.local, Signal{ID: sigID, Src: src, Payload: payload})
}

func readFull(ch Channel, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := ch.Read(buf[read:])
		if err != nil {
			return err
		}
		read += n
	}
	return nil
}

// Middleware adapts outbound wormhole routing to the entity middleware
// chain: if the dispatching entity has an outbound route, Send is called
// and the signal is marked HANDLED so it never reaches rule matching
// locally.
func (w *Wormhole) Middleware() Middleware {
	return func(e *Entity, sig *Signal) MiddlewareResult {
		route, ok := w.routeByLocal(e.id)
		if !ok {
			return MWContinue
		}
		localSig := *sig
		localSig.Src = e.id
		if err := w.Send(route.remote, localSig); err != nil {
			logAt(LevelWarn, "wormhole", e.id, sig.ID, e.State(), "send failed", err)
			return MWContinue
		}
		return MWHandled
	}
}
