package reactor

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

// ParamID identifies a parameter definition within a ParamStore.
type ParamID uint16

// ParamType enumerates the declared types a parameter may hold. Typed
// accessors are total over their declared type and fail with
// TypeMismatchError otherwise (§4.8).
type ParamType int

const (
	ParamBool ParamType = iota
	ParamI8
	ParamU8
	ParamI16
	ParamU16
	ParamI32
	ParamU32
	ParamF32
	ParamString
	ParamBlob
)

func (t ParamType) String() string {
	switch t {
	case ParamBool:
		return "bool"
	case ParamI8:
		return "i8"
	case ParamU8:
		return "u8"
	case ParamI16:
		return "i16"
	case ParamU16:
		return "u16"
	case ParamI32:
		return "i32"
	case ParamU32:
		return "u32"
	case ParamF32:
		return "f32"
	case ParamString:
		return "string"
	case ParamBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// ParamDef is the static definition of one parameter, supplied to
// ParamStore.Init.
type ParamDef struct {
	ID           ParamID
	Name         string
	Type         ParamType
	Default      any
	Persist      bool
	Notify       bool
	MaxStringLen int // only consulted when Type == ParamString; 0 => no bound beyond the store default
	MaxBlobLen   int // only consulted when Type == ParamBlob; 0 => no bound beyond the store default
}

// ParamRecord is one live entry in the store.
type ParamRecord struct {
	Def   ParamDef
	Value any
	Dirty bool
}

// StorageBackend persists parameter values, keyed by name. A nil backend
// is valid: the store then runs purely in RAM, with Persist definitions
// behaving as if Persist were false.
type StorageBackend interface {
	Init() error
	Load(name string) ([]byte, bool, error)
	Save(name string, data []byte) error
	Commit() error
	Erase(name string) error
}

// MemoryBackend is an in-process StorageBackend: a minimal reference
// implementation of the pluggable interface, in the same spirit as
// eventloop's noop metrics sink. It exists so
// ParamStore's persistence contract (load-on-init, save-on-set,
// commit-on-batch) is independently testable without real storage media.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend returns an empty in-memory StorageBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Init() error { return nil }

func (m *MemoryBackend) Load(name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(data))
	copy(v, data)
	m.data[name] = v
	return nil
}

func (m *MemoryBackend) Commit() error { return nil }

func (m *MemoryBackend) Erase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

// ParamStore is the typed, persistable parameter table of §4.8.
type ParamStore struct {
	kernel  *Kernel
	maxSize int

	mu      sync.RWMutex
	records map[ParamID]*ParamRecord
	order   []ParamID
	backend StorageBackend
	batch   bool
}

func newParamStore(k *Kernel, maxParams int) *ParamStore {
	return &ParamStore{
		kernel:  k,
		maxSize: maxParams,
		records: make(map[ParamID]*ParamRecord, maxParams),
	}
}

// Init populates the store from defs, then - if backend is non-nil -
// loads any persisted value over each definition's default. Publishes
// SigParamReady once every definition has been resolved.
func (s *ParamStore) Init(defs []ParamDef, backend StorageBackend) error {
	s.mu.Lock()
	if len(defs) > s.maxSize {
		s.mu.Unlock()
		return WrapError("param store init", ErrNoMemory)
	}
	s.backend = backend
	if backend != nil {
		if err := backend.Init(); err != nil {
			s.mu.Unlock()
			return WrapError("param store init", err)
		}
	}
	s.records = make(map[ParamID]*ParamRecord, len(defs))
	s.order = s.order[:0]
	for _, def := range defs {
		rec := &ParamRecord{Def: def, Value: def.Default}
		if backend != nil {
			if raw, ok, err := backend.Load(def.Name); err == nil && ok {
				if v, err := deserializeParam(def.Type, raw); err == nil {
					rec.Value = v
				}
			}
		}
		s.records[def.ID] = rec
		s.order = append(s.order, def.ID)
	}
	s.mu.Unlock()

	if s.kernel != nil && s.kernel.bus != nil {
		s.kernel.bus.Publish(newSignal(SigParamReady, 0, s.kernel.opts.payloadWidth))
	}
	return nil
}

func (s *ParamStore) lookup(id ParamID) (*ParamRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, &NotFoundError{Kind: "parameter", ID: id}
	}
	return rec, nil
}

func (s *ParamStore) get(id ParamID, want ParamType) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if rec.Def.Type != want {
		return nil, &TypeMismatchError{Param: id, Want: want, Got: rec.Def.Type}
	}
	return rec.Value, nil
}

// set implements the single set algorithm shared by every typed setter
// (§4.8): short-circuit on an equal value, else write + mark dirty, then
// persist and/or notify per the definition's flags.
func (s *ParamStore) set(id ParamID, want ParamType, value any, equal func(a, b any) bool) error {
	s.mu.Lock()
	rec, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Def.Type != want {
		s.mu.Unlock()
		return &TypeMismatchError{Param: id, Want: want, Got: rec.Def.Type}
	}
	if equal(rec.Value, value) {
		s.mu.Unlock()
		return nil
	}
	rec.Value = value
	rec.Dirty = true
	persistNow := rec.Def.Persist && !s.batch
	notify := rec.Def.Notify
	backend := s.backend
	def := rec.Def
	s.mu.Unlock()

	if persistNow && backend != nil {
		if err := s.persist(backend, def, value); err != nil {
			return WrapError("param persist", err)
		}
	}
	if notify && s.kernel != nil && s.kernel.bus != nil {
		width := s.kernel.opts.payloadWidth
		sig := newSignal(SigParamChanged, 0, width)
		sig.SetPayloadU16(0, uint16(id))
		s.kernel.bus.Publish(sig)
	}
	return nil
}

func (s *ParamStore) persist(backend StorageBackend, def ParamDef, value any) error {
	raw, err := serializeParam(def.Type, value)
	if err != nil {
		return err
	}
	return backend.Save(def.Name, raw)
}

// GetBool returns the current value of a ParamBool parameter.
func (s *ParamStore) GetBool(id ParamID) (bool, error) {
	v, err := s.get(id, ParamBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetBool sets a ParamBool parameter's value.
func (s *ParamStore) SetBool(id ParamID, v bool) error {
	return s.set(id, ParamBool, v, func(a, b any) bool { return a.(bool) == b.(bool) })
}

// GetI8 returns the current value of a ParamI8 parameter.
func (s *ParamStore) GetI8(id ParamID) (int8, error) {
	v, err := s.get(id, ParamI8)
	if err != nil {
		return 0, err
	}
	return v.(int8), nil
}

// SetI8 sets a ParamI8 parameter's value.
func (s *ParamStore) SetI8(id ParamID, v int8) error {
	return s.set(id, ParamI8, v, func(a, b any) bool { return a.(int8) == b.(int8) })
}

// GetU8 returns the current value of a ParamU8 parameter.
func (s *ParamStore) GetU8(id ParamID) (uint8, error) {
	v, err := s.get(id, ParamU8)
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

// SetU8 sets a ParamU8 parameter's value.
func (s *ParamStore) SetU8(id ParamID, v uint8) error {
	return s.set(id, ParamU8, v, func(a, b any) bool { return a.(uint8) == b.(uint8) })
}

// GetI16 returns the current value of a ParamI16 parameter.
func (s *ParamStore) GetI16(id ParamID) (int16, error) {
	v, err := s.get(id, ParamI16)
	if err != nil {
		return 0, err
	}
	return v.(int16), nil
}

// SetI16 sets a ParamI16 parameter's value.
func (s *ParamStore) SetI16(id ParamID, v int16) error {
	return s.set(id, ParamI16, v, func(a, b any) bool { return a.(int16) == b.(int16) })
}

// GetU16 returns the current value of a ParamU16 parameter.
func (s *ParamStore) GetU16(id ParamID) (uint16, error) {
	v, err := s.get(id, ParamU16)
	if err != nil {
		return 0, err
	}
	return v.(uint16), nil
}

// SetU16 sets a ParamU16 parameter's value.
func (s *ParamStore) SetU16(id ParamID, v uint16) error {
	return s.set(id, ParamU16, v, func(a, b any) bool { return a.(uint16) == b.(uint16) })
}

// GetI32 returns the current value of a ParamI32 parameter.
func (s *ParamStore) GetI32(id ParamID) (int32, error) {
	v, err := s.get(id, ParamI32)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

// SetI32 sets a ParamI32 parameter's value.
func (s *ParamStore) SetI32(id ParamID, v int32) error {
	return s.set(id, ParamI32, v, func(a, b any) bool { return a.(int32) == b.(int32) })
}

// GetU32 returns the current value of a ParamU32 parameter.
func (s *ParamStore) GetU32(id ParamID) (uint32, error) {
	v, err := s.get(id, ParamU32)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

// SetU32 sets a ParamU32 parameter's value.
func (s *ParamStore) SetU32(id ParamID, v uint32) error {
	return s.set(id, ParamU32, v, func(a, b any) bool { return a.(uint32) == b.(uint32) })
}

// GetF32 returns the current value of a ParamF32 parameter.
func (s *ParamStore) GetF32(id ParamID) (float32, error) {
	v, err := s.get(id, ParamF32)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

// SetF32 sets a ParamF32 parameter's value.
func (s *ParamStore) SetF32(id ParamID, v float32) error {
	return s.set(id, ParamF32, v, func(a, b any) bool { return a.(float32) == b.(float32) })
}

// GetString returns the current value of a ParamString parameter.
func (s *ParamStore) GetString(id ParamID) (string, error) {
	v, err := s.get(id, ParamString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetString sets a ParamString parameter's value, truncating to the
// definition's MaxStringLen if set.
func (s *ParamStore) SetString(id ParamID, v string) error {
	s.mu.RLock()
	rec, err := s.lookup(id)
	var maxLen int
	if err == nil {
		maxLen = rec.Def.MaxStringLen
	}
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	return s.set(id, ParamString, v, func(a, b any) bool { return a.(string) == b.(string) })
}

// GetBlob returns the current value of a ParamBlob parameter.
func (s *ParamStore) GetBlob(id ParamID) ([]byte, error) {
	v, err := s.get(id, ParamBlob)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// SetBlob sets a ParamBlob parameter's value, truncating to the
// definition's MaxBlobLen if set.
func (s *ParamStore) SetBlob(id ParamID, v []byte) error {
	s.mu.RLock()
	rec, err := s.lookup(id)
	var maxLen int
	if err == nil {
		maxLen = rec.Def.MaxBlobLen
	}
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	return s.set(id, ParamBlob, v, func(a, b any) bool { return bytes.Equal(a.([]byte), b.([]byte)) })
}

// BatchBegin enters batch mode: subsequent sets update RAM and mark dirty
// but do not persist until Commit.
func (s *ParamStore) BatchBegin() {
	s.mu.Lock()
	s.batch = true
	s.mu.Unlock()
}

// Commit saves every dirty entry in one pass and calls the backend's
// Commit, then clears batch mode.
func (s *ParamStore) Commit() error {
	s.mu.Lock()
	backend := s.backend
	var dirty []*ParamRecord
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Dirty {
			dirty = append(dirty, rec)
		}
	}
	s.batch = false
	s.mu.Unlock()

	if backend == nil {
		for _, rec := range dirty {
			s.mu.Lock()
			rec.Dirty = false
			s.mu.Unlock()
		}
		return nil
	}
	for _, rec := range dirty {
		if err := s.persist(backend, rec.Def, rec.Value); err != nil {
			return WrapError("param commit", err)
		}
		s.mu.Lock()
		rec.Dirty = false
		s.mu.Unlock()
	}
	return backend.Commit()
}

// BatchAbort reloads every definition from storage, undoing any RAM
// changes made since BatchBegin, and clears batch mode.
func (s *ParamStore) BatchAbort() error {
	s.mu.Lock()
	backend := s.backend
	s.batch = false
	if backend == nil {
		s.mu.Unlock()
		return nil
	}
	for _, id := range s.order {
		rec := s.records[id]
		raw, ok, err := backend.Load(rec.Def.Name)
		if err != nil {
			s.mu.Unlock()
			return WrapError("param batch abort", err)
		}
		if ok {
			if v, err := deserializeParam(rec.Def.Type, raw); err == nil {
				rec.Value = v
			}
		}
		rec.Dirty = false
	}
	s.mu.Unlock()
	return nil
}

func serializeParam(t ParamType, v any) ([]byte, error) {
	switch t {
	case ParamBool:
		if v.(bool) {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case ParamI8:
		return []byte{byte(v.(int8))}, nil
	case ParamU8:
		return []byte{v.(uint8)}, nil
	case ParamI16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v.(int16)))
		return buf, nil
	case ParamU16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, v.(uint16))
		return buf, nil
	case ParamI32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.(int32)))
		return buf, nil
	case ParamU32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v.(uint32))
		return buf, nil
	case ParamF32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.(float32)))
		return buf, nil
	case ParamString:
		return []byte(v.(string)), nil
	case ParamBlob:
		return append([]byte(nil), v.([]byte)...), nil
	default:
		return nil, WrapError("serialize param", ErrInvalidArg)
	}
}

func deserializeParam(t ParamType, raw []byte) (any, error) {
	switch t {
	case ParamBool:
		if len(raw) < 1 {
			return nil, ErrInvalidArg
		}
		return raw[0] != 0, nil
	case ParamI8:
		if len(raw) < 1 {
			return nil, ErrInvalidArg
		}
		return int8(raw[0]), nil
	case ParamU8:
		if len(raw) < 1 {
			return nil, ErrInvalidArg
		}
		return raw[0], nil
	case ParamI16:
		if len(raw) < 2 {
			return nil, ErrInvalidArg
		}
		return int16(binary.LittleEndian.Uint16(raw)), nil
	case ParamU16:
		if len(raw) < 2 {
			return nil, ErrInvalidArg
		}
		return binary.LittleEndian.Uint16(raw), nil
	case ParamI32:
		if len(raw) < 4 {
			return nil, ErrInvalidArg
		}
		return int32(binary.LittleEndian.Uint32(raw)), nil
	case ParamU32:
		if len(raw) < 4 {
			return nil, ErrInvalidArg
		}
		return binary.LittleEndian.Uint32(raw), nil
	case ParamF32:
		if len(raw) < 4 {
			return nil, ErrInvalidArg
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
	case ParamString:
		return string(raw), nil
	case ParamBlob:
		return append([]byte(nil), raw...), nil
	default:
		return nil, ErrInvalidArg
	}
}
