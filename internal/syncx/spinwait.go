package syncx

import "runtime"

// spinWait yields the processor to another goroutine. A real spinlock on a
// pinned core would issue a PAUSE instruction; Go gives no such primitive,
// so Gosched is the closest idiomatic equivalent (see REDESIGN FLAGS in
// SPEC_FULL.md).
func spinWait() {
	runtime.Gosched()
}
