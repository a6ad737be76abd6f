package heap

import "context"

type ctxKey struct{}

// WithHeap returns a context carrying h as the "current heap" for the
// calling goroutine's RPC invocation. The value lives only as long as the
// returned context. NewMutex and NewCondVar do not consult it: primitives
// are added to a heap only by an explicit Heap.Register call, and no RPC
// server in this module sets a current heap on inbound calls.
func WithHeap(ctx context.Context, h *Heap) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// FromContext returns the heap registered by the nearest enclosing
// WithHeap call, or nil if none is set.
func FromContext(ctx context.Context) *Heap {
	h, _ := ctx.Value(ctxKey{}).(*Heap)
	return h
}
