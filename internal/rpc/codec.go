package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype negotiated between RPCClient and
// the proclet invocation service. Registering a named codec lets both
// sides skip protobuf entirely: CallRequest/CallResponse carry whatever
// bytes the caller's own argument encoding produces.
const codecName = "nu-raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *CallRequest:
		return m.encode(), nil
	case *CallResponse:
		return m.encode(), nil
	default:
		return nil, fmt.Errorf("nu-raw codec: cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *CallRequest:
		return m.decode(data)
	case *CallResponse:
		return m.decode(data)
	default:
		return fmt.Errorf("nu-raw codec: cannot unmarshal into %T", v)
	}
}
