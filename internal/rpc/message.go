package rpc

import (
	"encoding/binary"
	"fmt"
)

// CallRequest and CallResponse are the only two message types the "nu-raw"
// gRPC codec needs to marshal. A proclet method is addressed by name plus
// an opaque argument payload — the caller's own encoding is one level
// above this core, so there is no protobuf schema to generate here; the
// wire format below is hand-rolled the same way the migrator's loader
// frames are, just for the RPC path instead of the loader path.
type CallRequest struct {
	Method string
	Arg    []byte
}

type CallResponse struct {
	OK     bool
	ErrMsg string
	Result []byte
}

func encodeString(dst []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, s...)
}

func decodeString(src []byte) (string, []byte, error) {
	if len(src) < 4 {
		return "", nil, fmt.Errorf("nu-raw: truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(src[:4])
	src = src[4:]
	if uint64(len(src)) < uint64(n) {
		return "", nil, fmt.Errorf("nu-raw: truncated payload (want %d, have %d)", n, len(src))
	}
	return string(src[:n]), src[n:], nil
}

func (r *CallRequest) encode() []byte {
	buf := make([]byte, 0, 8+len(r.Method)+len(r.Arg))
	buf = encodeString(buf, r.Method)
	buf = encodeString(buf, string(r.Arg))
	return buf
}

func (r *CallRequest) decode(data []byte) error {
	method, rest, err := decodeString(data)
	if err != nil {
		return err
	}
	arg, _, err := decodeString(rest)
	if err != nil {
		return err
	}
	r.Method = method
	r.Arg = []byte(arg)
	return nil
}

func (r *CallResponse) encode() []byte {
	buf := make([]byte, 0, 9+len(r.ErrMsg)+len(r.Result))
	if r.OK {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = encodeString(buf, r.ErrMsg)
	buf = encodeString(buf, string(r.Result))
	return buf
}

func (r *CallResponse) decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("nu-raw: empty response")
	}
	r.OK = data[0] == 1
	errMsg, rest, err := decodeString(data[1:])
	if err != nil {
		return err
	}
	result, _, err := decodeString(rest)
	if err != nil {
		return err
	}
	r.ErrMsg = errMsg
	r.Result = []byte(result)
	return nil
}
