package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRPCGatewayHandleBinaryRoutesToTarget(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	e, err := k.AddEntity(EntityConfig{ID: 1, States: []StateDescriptor{{ID: 1}}, InitialState: 1})
	require.NoError(t, err)
	e.setFlag(FlagActive)

	gw := NewRPCGateway(k)
	frame := k.Codec().EncodeBinary(newSignal(SigUserBase, 0, 4))

	require.NoError(t, gw.Handle(frame, FormatBinary, 1))
	require.Equal(t, 1, e.inbox.Len())
}

func TestRPCGatewayHandleJSONInvokesReceiveWhenNoTarget(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	gw := NewRPCGateway(k)

	var got Signal
	gw.Receive = func(sig Signal) { got = sig }

	require.NoError(t, gw.Handle([]byte(`{"id":256,"src":3}`), FormatJSON, 0))
	require.Equal(t, SigUserBase, got.ID)
	require.EqualValues(t, 3, got.Src)
}

func TestRPCGatewayHandlePropagatesDecodeError(t *testing.T) {
	k := NewKernel(WithMaxEntities(1))
	gw := NewRPCGateway(k)
	err := gw.Handle([]byte(`{"src":1}`), FormatJSON, 0)
	require.ErrorIs(t, err, ErrInvalidArg)
}
