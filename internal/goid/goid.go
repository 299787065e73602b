// Package goid reports the identity of the calling goroutine.
//
// It exists only for owner checks: the host store and the local task queue may
// only be touched from the goroutine that drives the host tick.
package goid

import "runtime"

// Current returns the current goroutine's ID.
// This parses the header of runtime.Stack and is only meant for ownership
// assertions, not for hot paths.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack trace starts with "goroutine NNN ["
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
