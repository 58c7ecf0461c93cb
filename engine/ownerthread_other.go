//go:build !linux

// License: Apache-2.0

package engine

// gettid reports ok=false on platforms without a cheap OS-thread-id probe,
// so IsOwnerThread always takes the safe cross-thread path (Offer/Wakeup
// still behave correctly, just without the loop-local fast path).
func gettid() (int, bool) { return 0, false }
