package oolong

import "sync/atomic"

// resurrection is the block window for reference resurrection. It is
// blocked at mark end and unblocked by reference processing; while
// blocked, anything that would make a non-strongly reachable object
// strongly reachable again must be deferred.
type resurrection struct {
	blocked atomic.Bool
}

func (r *resurrection) block() {
	if !r.blocked.CompareAndSwap(false, true) {
		fatalf("resurrection already blocked")
	}
}

func (r *resurrection) unblock() {
	if !r.blocked.CompareAndSwap(true, false) {
		fatalf("resurrection not blocked")
	}
}

func (r *resurrection) isBlocked() bool {
	return r.blocked.Load()
}
