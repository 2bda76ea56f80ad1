package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamStoreGetSetRoundTrip(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{
		{ID: 1, Name: "threshold", Type: ParamI32, Default: int32(10)},
		{ID: 2, Name: "enabled", Type: ParamBool, Default: false},
	}, nil))

	v, err := store.GetI32(1)
	require.NoError(t, err)
	require.EqualValues(t, 10, v)

	require.NoError(t, store.SetI32(1, 20))
	v, err = store.GetI32(1)
	require.NoError(t, err)
	require.EqualValues(t, 20, v)
}

func TestParamStoreNarrowIntegerTypesRoundTrip(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{
		{ID: 1, Name: "i8", Type: ParamI8, Default: int8(-5)},
		{ID: 2, Name: "u8", Type: ParamU8, Default: uint8(5)},
		{ID: 3, Name: "i16", Type: ParamI16, Default: int16(-300)},
		{ID: 4, Name: "u16", Type: ParamU16, Default: uint16(300)},
	}, nil))

	require.NoError(t, store.SetI8(1, -1))
	i8v, err := store.GetI8(1)
	require.NoError(t, err)
	require.EqualValues(t, -1, i8v)

	require.NoError(t, store.SetU8(2, 200))
	u8v, err := store.GetU8(2)
	require.NoError(t, err)
	require.EqualValues(t, 200, u8v)

	require.NoError(t, store.SetI16(3, -12345))
	i16v, err := store.GetI16(3)
	require.NoError(t, err)
	require.EqualValues(t, -12345, i16v)

	require.NoError(t, store.SetU16(4, 54321))
	u16v, err := store.GetU16(4)
	require.NoError(t, err)
	require.EqualValues(t, 54321, u16v)
}

func TestParamStoreBlobRoundTripsAndTruncates(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{
		{ID: 1, Name: "b", Type: ParamBlob, Default: []byte{}, MaxBlobLen: 3},
	}, nil))

	require.NoError(t, store.SetBlob(1, []byte{1, 2, 3, 4, 5}))
	v, err := store.GetBlob(1)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, v)
}

func TestParamStoreBlobPersistsThroughSerializeRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{
		{ID: 1, Name: "b", Type: ParamBlob, Default: []byte{}, Persist: true},
	}, backend))

	require.NoError(t, store.SetBlob(1, []byte{9, 8, 7}))
	raw, ok, err := backend.Load("b")
	require.NoError(t, err)
	require.True(t, ok)
	v, err := deserializeParam(ParamBlob, raw)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, v)
}

func TestParamStoreTypeMismatch(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "x", Type: ParamI32, Default: int32(0)}}, nil))

	_, err := store.GetBool(1)
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
}

func TestParamStorePersistsOnSetOutsideBatch(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	backend := NewMemoryBackend()
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "x", Type: ParamU32, Default: uint32(0), Persist: true}}, backend))

	require.NoError(t, store.SetU32(1, 99))
	raw, ok, err := backend.Load("x")
	require.NoError(t, err)
	require.True(t, ok)
	v, err := deserializeParam(ParamU32, raw)
	require.NoError(t, err)
	require.EqualValues(t, 99, v)
}

func TestParamStoreLoadsPersistedValueOnInit(t *testing.T) {
	backend := NewMemoryBackend()
	raw, err := serializeParam(ParamU32, uint32(7))
	require.NoError(t, err)
	require.NoError(t, backend.Save("x", raw))

	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "x", Type: ParamU32, Default: uint32(0), Persist: true}}, backend))

	v, err := store.GetU32(1)
	require.NoError(t, err)
	require.EqualValues(t, 7, v, "persisted value must override the default at Init")
}

func TestParamStoreBatchDefersPersistUntilCommit(t *testing.T) {
	backend := NewMemoryBackend()
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "x", Type: ParamI32, Default: int32(0), Persist: true}}, backend))

	store.BatchBegin()
	require.NoError(t, store.SetI32(1, 5))
	_, ok, _ := backend.Load("x")
	require.False(t, ok, "batch mode must not persist immediately")

	require.NoError(t, store.Commit())
	raw, ok, err := backend.Load("x")
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := deserializeParam(ParamI32, raw)
	require.EqualValues(t, 5, v)
}

func TestParamStoreBatchAbortReloadsFromStorage(t *testing.T) {
	backend := NewMemoryBackend()
	raw, _ := serializeParam(ParamI32, int32(1))
	require.NoError(t, backend.Save("x", raw))

	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "x", Type: ParamI32, Default: int32(0), Persist: true}}, backend))

	store.BatchBegin()
	require.NoError(t, store.SetI32(1, 999))
	require.NoError(t, store.BatchAbort())

	v, err := store.GetI32(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestParamStoreSetStringTruncatesToMaxLen(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 1, Name: "name", Type: ParamString, Default: "", MaxStringLen: 3}}, nil))

	require.NoError(t, store.SetString(1, "abcdef"))
	v, err := store.GetString(1)
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}

func TestParamStoreSetNotifiesViaBus(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	e, err := k.AddEntity(EntityConfig{ID: 1, States: []StateDescriptor{{ID: 1}}, InitialState: 1})
	require.NoError(t, err)
	e.setFlag(FlagActive)
	require.NoError(t, k.Bus().Subscribe(1, SigParamChanged))

	store := k.Params()
	require.NoError(t, store.Init([]ParamDef{{ID: 5, Name: "x", Type: ParamBool, Default: false, Notify: true}}, nil))
	require.NoError(t, store.SetBool(5, true))

	require.Equal(t, 1, e.inbox.Len())
	sig, ok := e.inbox.TryPop()
	require.True(t, ok)
	require.Equal(t, SigParamChanged, sig.ID)
	require.EqualValues(t, 5, sig.PayloadU16(0))
}
