package reactor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// binSync is the wire-format sync byte for the binary frame codec (§4.9).
const binSync = 0x55

// crc16CCITT computes the CRC-16/CCITT checksum (polynomial 0x1021,
// initial 0xFFFF, no final XOR) used by the binary frame codec. No
// available third-party library exposes this exact polynomial/init/xout
// combination as a zero-allocation function over a byte slice, so it is
// hand-rolled here rather than pulled in as a dependency purely for one
// bit-twiddling loop; see DESIGN.md.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// FieldType names the scalar types a SchemaField may declare.
type FieldType int

const (
	FieldU8 FieldType = iota
	FieldU16
	FieldU32
	FieldI8
	FieldI16
	FieldI32
	FieldF32
	FieldBool
)

// SchemaField names one payload field: its JSON key, its declared type,
// and its byte offset within the payload buffer.
type SchemaField struct {
	Name   string
	Type   FieldType
	Offset int
}

// Schema binds a signal id to a named, typed field layout, used by the
// JSON codec to produce and consume a structured representation instead
// of the generic fallback.
type Schema struct {
	SignalID SignalID
	Fields   []SchemaField
}

// Codec implements the binary frame and schema-driven JSON representations
// of §4.9, plus the streaming decoder and RPC gateway.
type Codec struct {
	payloadWidth int
	schemas      map[SignalID]Schema
}

func newCodec(payloadWidth int) *Codec {
	return &Codec{payloadWidth: payloadWidth, schemas: make(map[SignalID]Schema)}
}

// RegisterSchema binds sch to sch.SignalID, replacing any prior schema for
// that id.
func (c *Codec) RegisterSchema(sch Schema) {
	c.schemas[sch.SignalID] = sch
}

// EncodeBinary writes sig's wire frame - sync, length, signal id, source
// id, payload, CRC-16 - to a newly allocated buffer. Only up to
// c.payloadWidth bytes of sig.Payload are copied.
func (c *Codec) EncodeBinary(sig Signal) []byte {
	n := len(sig.Payload)
	if n > c.payloadWidth {
		n = c.payloadWidth
	}
	buf := make([]byte, 7+n+2)
	buf[0] = binSync
	putU16(buf[1:], uint16(n))
	putU16(buf[3:], uint16(sig.ID))
	putU16(buf[5:], uint16(sig.Src))
	copy(buf[7:7+n], sig.Payload[:n])
	crc := crc16CCITT(buf[1 : 7+n])
	putU16(buf[7+n:], crc)
	return buf
}

// DecodeBinary scans buf for the sync byte and decodes one frame starting
// there. Returns the decoded signal, the number of bytes consumed from
// buf (including any bytes skipped before the sync byte), and an error:
// ErrInvalidArg (CRC mismatch, after which the caller should resume
// scanning one byte past the sync it tried) or ErrTimeout used as the
// "need more data" sentinel (no bytes consumed; call again once more
// bytes are available).
func (c *Codec) DecodeBinary(buf []byte) (Signal, int, error) {
	skip := 0
	for skip < len(buf) && buf[skip] != binSync {
		skip++
	}
	if skip >= len(buf) {
		return Signal{}, len(buf), ErrTimeout
	}
	rest := buf[skip:]
	if len(rest) < 7 {
		return Signal{}, skip, ErrTimeout
	}
	n := int(getU16(rest[1:]))
	total := 7 + n + 2
	if len(rest) < total {
		return Signal{}, skip, ErrTimeout
	}
	crcWant := getU16(rest[total-2:])
	crcGot := crc16CCITT(rest[1 : total-2])
	if crcWant != crcGot {
		return Signal{}, skip + 1, ErrInvalidArg
	}
	sig := Signal{
		ID:      SignalID(getU16(rest[3:])),
		Src:     EntityID(getU16(rest[5:])),
		Payload: append([]byte(nil), rest[7:7+n]...),
	}
	return sig, skip + total, nil
}

// StreamDecoder accumulates bytes across calls, holding a bounded
// partial-frame buffer, and yields decoded signals as soon as a complete
// frame is available.
type StreamDecoder struct {
	codec *Codec
	buf    []byte
	maxLen int
}

// NewStreamDecoder returns a StreamDecoder bound to codec with a
// partial-frame buffer capped at maxLen bytes.
func (c *Codec) NewStreamDecoder(maxLen int) *StreamDecoder {
	return &StreamDecoder{codec: c, maxLen: maxLen}
}

// Feed appends data and attempts to decode as many complete frames as are
// buffered, invoking onFrame for each. On CRC failure or buffer overflow
// the partial buffer is reset and decoding resumes from the next sync
// byte found.
func (d *StreamDecoder) Feed(data []byte, onFrame func(Signal)) {
	d.buf = append(d.buf, data...)
	for {
		sig, n, err := d.codec.DecodeBinary(d.buf)
		switch err {
		case nil:
			onFrame(sig)
			d.buf = d.buf[n:]
		case ErrTimeout:
			d.buf = d.buf[n:]
			if len(d.buf) > d.maxLen {
				d.buf = nil
			}
			return
		default: // ErrInvalidArg: CRC mismatch, resynchronize
			d.buf = d.buf[n:]
		}
	}
}

// EncodeJSON renders sig as JSON. When a schema is registered for sig.ID,
// the output is an object with id/name/src/ts plus each schema field
// decoded from its declared offset; otherwise it falls back to a generic
// representation with a numeric payload array.
func (c *Codec) EncodeJSON(sig Signal, names *Names) string {
	b := make([]byte, 0, 64+len(sig.Payload)*4)
	b = append(b, '{')
	b = jsonenc.AppendString(b, "id")
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(sig.ID), 10)
	b = append(b, ',')
	b = jsonenc.AppendString(b, "name")
	b = append(b, ':')
	b = jsonenc.AppendString(b, names.SignalName(sig.ID))
	b = append(b, ',')
	b = jsonenc.AppendString(b, "src")
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(sig.Src), 10)
	b = append(b, ',')
	b = jsonenc.AppendString(b, "ts")
	b = append(b, ':')
	b = strconv.AppendInt(b, sig.TimestampMs, 10)

	if sch, ok := c.schemas[sig.ID]; ok {
		for _, f := range sch.Fields {
			b = append(b, ',')
			b = jsonenc.AppendString(b, f.Name)
			b = append(b, ':')
			b = appendFieldJSON(b, sig, f)
		}
	} else {
		b = append(b, ',')
		b = jsonenc.AppendString(b, "payload")
		b = append(b, ':', '[')
		for i, v := range sig.Payload {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendInt(b, int64(v), 10)
		}
		b = append(b, ']')
	}
	b = append(b, '}')
	return string(b)
}

func appendFieldJSON(b []byte, sig Signal, f SchemaField) []byte {
	switch f.Type {
	case FieldU8:
		return strconv.AppendInt(b, int64(sig.PayloadU8(f.Offset)), 10)
	case FieldU16:
		return strconv.AppendInt(b, int64(sig.PayloadU16(f.Offset)), 10)
	case FieldU32:
		return strconv.AppendUint(b, uint64(sig.PayloadU32(f.Offset)), 10)
	case FieldI8:
		return strconv.AppendInt(b, int64(sig.PayloadI8(f.Offset)), 10)
	case FieldI16:
		return strconv.AppendInt(b, int64(sig.PayloadI16(f.Offset)), 10)
	case FieldI32:
		return strconv.AppendInt(b, int64(sig.PayloadI32(f.Offset)), 10)
	case FieldF32:
		bits := sig.PayloadU32(f.Offset)
		return jsonenc.AppendFloat32(b, math.Float32frombits(bits))
	case FieldBool:
		if sig.PayloadU8(f.Offset) != 0 {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	}
	return b
}

// DecodeJSON is a tolerant, field-by-field string-search decoder: it does
// not require well-formed JSON beyond the presence of each key it looks
// for. Schema fields are written back into the payload at their declared
// offsets; id/src/ts are always read if present.
func (c *Codec) DecodeJSON(s string, width int) (Signal, error) {
	idv, ok := findJSONInt(s, "id")
	if !ok {
		return Signal{}, WrapError("decode json", ErrInvalidArg)
	}
	sig := Signal{ID: SignalID(idv), Payload: make([]byte, width)}
	if srcv, ok := findJSONInt(s, "src"); ok {
		sig.Src = EntityID(srcv)
	}
	if tsv, ok := findJSONInt(s, "ts"); ok {
		sig.TimestampMs = tsv
	}
	if sch, ok := c.schemas[sig.ID]; ok {
		for _, f := range sch.Fields {
			if v, ok := findJSONInt(s, f.Name); ok {
				writeFieldRaw(&sig, f, v)
			}
		}
	}
	return sig, nil
}

func writeFieldRaw(sig *Signal, f SchemaField, v int64) {
	switch f.Type {
	case FieldU8, FieldI8, FieldBool:
		sig.SetPayloadU8(f.Offset, uint8(v))
	case FieldU16, FieldI16:
		sig.SetPayloadU16(f.Offset, uint16(v))
	case FieldU32, FieldI32, FieldF32:
		sig.SetPayloadU32(f.Offset, uint32(v))
	}
}

// findJSONInt is the tolerant scanner: it locates `"key"` then the next
// `:`, skips whitespace/quotes, and parses the following integer run.
func findJSONInt(s, key string) (int64, bool) {
	needle := `"` + key + `"`
	idx := strings.Index(s, needle)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(needle):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return 0, false
	}
	rest = strings.TrimLeft(rest[colon+1:], " \t\n\"")
	end := 0
	for end < len(rest) && (rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Names maps ids to display names for trace/JSON text output. A nil
// *Names is valid; lookups return the numeric id formatted as a string.
type Names struct {
	Signals  map[SignalID]string
	Entities map[EntityID]string
}

// SignalName returns the registered name for id, or its numeric value.
func (n *Names) SignalName(id SignalID) string {
	if n != nil {
		if name, ok := n.Signals[id]; ok {
			return name
		}
	}
	return fmt.Sprintf("0x%04X", uint16(id))
}

// EntityName returns the registered name for id, or its numeric value.
func (n *Names) EntityName(id EntityID) string {
	if n != nil {
		if name, ok := n.Entities[id]; ok {
			return name
		}
	}
	return strconv.Itoa(int(id))
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getU16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
