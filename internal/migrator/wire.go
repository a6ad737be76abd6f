package migrator

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"nu/internal/model"
)

// frameKind is the loader wire protocol's single-byte message discriminator.
type frameKind uint8

const (
	kindHeapXfer     frameKind = 1
	kindAck          frameKind = 2
	kindNack         frameKind = 3
	kindSignalReplay frameKind = 4
)

const maxFrameLen = 1 << 30 // refuse to allocate on a corrupt length prefix

// primSnapshot is one registered primitive as captured at Quiescing→Migrating,
// in the wire order: type, a stable offset token, and its waiter queue.
type primSnapshot struct {
	Kind    model.PrimitiveKind
	Offset  uint64 // primitive's ID, reused as its "offset in heap" token
	Waiters []uint64
}

// pendingSignal is a signal/broadcast issued against a primitive after its
// heap entered Migrating, to be replayed against the reconstructed waiter
// queue on the destination.
type pendingSignal struct {
	PrimOffset uint64
	Broadcast  bool
}

// heapXfer is the decoded HEAP_XFER payload.
type heapXfer struct {
	HeapID        model.HeapID
	SrcNodeAddr   model.NodeAddr
	OffsetTSC     int64
	HeapBytes     []byte
	Primitives    []primSnapshot
	PendingSignal []pendingSignal
}

func writeFrame(w io.Writer, kind frameKind, payload []byte) error {
	var hdr [5]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = byte(kind)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) (frameKind, []byte, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[0:4])
	if n > maxFrameLen {
		return 0, nil, fmt.Errorf("%w: frame length %d exceeds maximum", ErrProtocol, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return frameKind(hdr[4]), payload, nil
}

func putU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func getU64(r *bufio.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func getU32(r *bufio.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

// encodeHeapXfer lays out the HEAP_XFER payload exactly as the loader wire
// protocol specifies it, with one necessary deviation: src_node_addr is a
// length-prefixed string rather than a bare u64, since this port addresses
// nodes by "host:port" instead of a packed numeric handle. Every other
// field keeps its specified width and order.
func encodeHeapXfer(x heapXfer) []byte {
	buf := make([]byte, 0, 64+len(x.HeapBytes))
	buf = putU64(buf, uint64(x.HeapID))
	buf = putU32(buf, uint32(len(x.SrcNodeAddr)))
	buf = append(buf, x.SrcNodeAddr...)
	buf = putU64(buf, uint64(x.OffsetTSC))
	buf = putU64(buf, uint64(len(x.HeapBytes)))
	buf = append(buf, x.HeapBytes...)
	buf = putU32(buf, uint32(len(x.Primitives)))
	for _, p := range x.Primitives {
		buf = append(buf, byte(p.Kind))
		buf = putU64(buf, p.Offset)
		buf = putU32(buf, uint32(len(p.Waiters)))
		for _, w := range p.Waiters {
			buf = putU64(buf, w)
		}
	}
	buf = putU32(buf, uint32(len(x.PendingSignal)))
	for _, s := range x.PendingSignal {
		buf = putU64(buf, s.PrimOffset)
		mode := byte(1)
		if s.Broadcast {
			mode = 2
		}
		buf = append(buf, mode)
	}
	return buf
}

func decodeHeapXfer(payload []byte) (heapXfer, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	var x heapXfer

	id, err := getU64(r)
	if err != nil {
		return x, fmt.Errorf("%w: heap_id: %v", ErrProtocol, err)
	}
	x.HeapID = model.HeapID(id)

	addrLen, err := getU32(r)
	if err != nil {
		return x, fmt.Errorf("%w: src_node_addr len: %v", ErrProtocol, err)
	}
	addr := make([]byte, addrLen)
	if _, err := io.ReadFull(r, addr); err != nil {
		return x, fmt.Errorf("%w: src_node_addr: %v", ErrProtocol, err)
	}
	x.SrcNodeAddr = model.NodeAddr(addr)

	offsetTSC, err := getU64(r)
	if err != nil {
		return x, fmt.Errorf("%w: offset_tsc: %v", ErrProtocol, err)
	}
	x.OffsetTSC = int64(offsetTSC)

	heapSize, err := getU64(r)
	if err != nil {
		return x, fmt.Errorf("%w: heap_size: %v", ErrProtocol, err)
	}
	if heapSize > maxFrameLen {
		return x, fmt.Errorf("%w: heap_size %d exceeds maximum", ErrProtocol, heapSize)
	}
	x.HeapBytes = make([]byte, heapSize)
	if _, err := io.ReadFull(r, x.HeapBytes); err != nil {
		return x, fmt.Errorf("%w: heap_bytes: %v", ErrProtocol, err)
	}

	nPrim, err := getU32(r)
	if err != nil {
		return x, fmt.Errorf("%w: n_primitives: %v", ErrProtocol, err)
	}
	x.Primitives = make([]primSnapshot, 0, nPrim)
	for i := uint32(0); i < nPrim; i++ {
		ptype, err := r.ReadByte()
		if err != nil {
			return x, fmt.Errorf("%w: ptype: %v", ErrProtocol, err)
		}
		offset, err := getU64(r)
		if err != nil {
			return x, fmt.Errorf("%w: prim_offset: %v", ErrProtocol, err)
		}
		nWaiters, err := getU32(r)
		if err != nil {
			return x, fmt.Errorf("%w: n_waiters: %v", ErrProtocol, err)
		}
		waiters := make([]uint64, 0, nWaiters)
		for j := uint32(0); j < nWaiters; j++ {
			tok, err := getU64(r)
			if err != nil {
				return x, fmt.Errorf("%w: thread_token: %v", ErrProtocol, err)
			}
			waiters = append(waiters, tok)
		}
		x.Primitives = append(x.Primitives, primSnapshot{
			Kind:    model.PrimitiveKind(ptype),
			Offset:  offset,
			Waiters: waiters,
		})
	}

	nSignals, err := getU32(r)
	if err != nil {
		return x, fmt.Errorf("%w: n_pending_signals: %v", ErrProtocol, err)
	}
	x.PendingSignal = make([]pendingSignal, 0, nSignals)
	for i := uint32(0); i < nSignals; i++ {
		offset, err := getU64(r)
		if err != nil {
			return x, fmt.Errorf("%w: prim_offset: %v", ErrProtocol, err)
		}
		mode, err := r.ReadByte()
		if err != nil {
			return x, fmt.Errorf("%w: signal mode: %v", ErrProtocol, err)
		}
		x.PendingSignal = append(x.PendingSignal, pendingSignal{
			PrimOffset: offset,
			Broadcast:  mode == 2,
		})
	}

	return x, nil
}

func encodeAck(id model.HeapID) []byte {
	return putU64(nil, uint64(id))
}

func decodeAck(payload []byte) (model.HeapID, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("%w: malformed ACK", ErrProtocol)
	}
	return model.HeapID(binary.LittleEndian.Uint64(payload)), nil
}

func encodeNack(id model.HeapID, reason uint32) []byte {
	buf := putU64(nil, uint64(id))
	return putU32(buf, reason)
}

func decodeNack(payload []byte) (model.HeapID, uint32, error) {
	if len(payload) != 12 {
		return 0, 0, fmt.Errorf("%w: malformed NACK", ErrProtocol)
	}
	id := model.HeapID(binary.LittleEndian.Uint64(payload[0:8]))
	reason := binary.LittleEndian.Uint32(payload[8:12])
	return id, reason, nil
}
