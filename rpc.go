package reactor

// rpc.go implements the RPC gateway described at the end of §4.9: a thin
// decode-and-route layer over the codec, for hosts that receive signals
// framed over a byte transport rather than constructing them in process.

// WireFormat names the encoding an RPC request buffer is framed in.
type WireFormat int

const (
	FormatBinary WireFormat = iota
	FormatJSON
)

// RPCGateway decodes a single inbound signal and either emits it to a
// named target entity or hands it to a receive callback, per the caller's
// choice.
type RPCGateway struct {
	kernel *Kernel
	codec  *Codec
	Receive func(Signal)
}

// NewRPCGateway returns a gateway bound to k's codec.
func NewRPCGateway(k *Kernel) *RPCGateway {
	return &RPCGateway{kernel: k, codec: k.codec}
}

// Handle decodes one signal from buf in the given format. If target is
// non-zero, the signal is emitted to that entity via Kernel.Emit;
// otherwise it is passed to g.Receive, if set. Decode failures propagate
// verbatim.
func (g *RPCGateway) Handle(buf []byte, format WireFormat, target EntityID) error {
	var sig Signal
	switch format {
	case FormatBinary:
		decoded, _, err := g.codec.DecodeBinary(buf)
		if err != nil {
			return err
		}
		sig = decoded
	case FormatJSON:
		decoded, err := g.codec.DecodeJSON(string(buf), g.kernel.opts.payloadWidth)
		if err != nil {
			return err
		}
		sig = decoded
	default:
		return WrapError("rpc handle", ErrInvalidArg)
	}

	if target != 0 {
		return g.kernel.Emit(target, sig)
	}
	if g.Receive != nil {
		g.Receive(sig)
	}
	return nil
}
