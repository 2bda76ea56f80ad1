package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceRecordsOnlyWhenEnabled(t *testing.T) {
	tr := newTrace(4)
	tr.RecordMarker(1, 1, 0xAA)
	require.Empty(t, tr.snapshot())

	tr.SetEnabled(true)
	tr.RecordMarker(2, 1, 0xBB)
	require.Len(t, tr.snapshot(), 1)
}

func TestTraceRingOverwritesOldestAndCountsDrop(t *testing.T) {
	tr := newTrace(2)
	tr.SetEnabled(true)
	tr.RecordCounter(1, 1, 1)
	tr.RecordCounter(2, 1, 2)
	tr.RecordCounter(3, 1, 3)

	events := tr.snapshot()
	require.Len(t, events, 2)
	require.EqualValues(t, 2, events[0].TimestampUs)
	require.EqualValues(t, 3, events[1].TimestampUs)
	require.Equal(t, 1, tr.Stats().Dropped)
}

func TestTraceDispatchDurationStats(t *testing.T) {
	tr := newTrace(8)
	tr.SetEnabled(true)
	tr.RecordDispatchStart(100, 1, SigUserBase, 0)
	tr.RecordDispatchEnd(140, 1, SigUserBase, 0)

	stats := tr.Stats()
	require.EqualValues(t, 40, stats.LongestDispatchUs)
	require.EqualValues(t, 1, stats.LongestEntity)
	require.Equal(t, SigUserBase, stats.LongestSignal)
}

func TestTraceExportRawRecordCount(t *testing.T) {
	tr := newTrace(8)
	tr.SetEnabled(true)
	tr.RecordMarker(1, 1, 1)
	tr.RecordMarker(2, 1, 2)

	raw := tr.ExportRaw()
	require.Len(t, raw, 2*16)
}

func TestTraceExportTextAndChromeContainNames(t *testing.T) {
	tr := newTrace(8)
	tr.SetEnabled(true)
	tr.RecordDispatchStart(0, 1, SigUserBase, 0)
	tr.RecordDispatchEnd(10, 1, SigUserBase, 0)
	names := &Names{Signals: map[SignalID]string{SigUserBase: "user.base"}}

	text := tr.ExportText(names)
	require.Contains(t, text, "user.base")

	chrome := tr.ExportChrome(names)
	require.Contains(t, chrome, `"name":"user.base"`)
	require.Contains(t, chrome, `"ph":"B"`)
	require.Contains(t, chrome, `"ph":"E"`)
}

func TestDispatchWiresTraceAndPanicRecorder(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	k.Trace().SetEnabled(true)
	e, err := k.AddEntity(EntityConfig{ID: 1, States: []StateDescriptor{{ID: 1}}, InitialState: 1})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	require.NoError(t, k.Emit(1, newSignal(SigUserBase, 0, 4)))
	_, err = k.Dispatch(e, 0)
	require.NoError(t, err)

	require.Equal(t, 2, k.Trace().Stats().Recorded, "dispatch must record both a start and an end event")

	var captured []PanicRecord
	k.Panic(func(recs []PanicRecord) { captured = recs })
	require.Len(t, captured, 1)
	require.Equal(t, SigUserBase, captured[0].Signal)
}
