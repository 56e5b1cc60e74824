// Package borrow provides the public API for the borrowsan runtime, a
// dynamic checker enforcing Aliasing XOR Mutability over instrumented
// pointer operations.
//
// The runtime maintains a borrow tree per goroutine: allocations
// create roots, reborrows create children, and accesses validate the
// pointer's whole derivation chain before enforcing exclusivity.
// Revocation is lazy - conflicting pointers may coexist until one of
// them is actually used, and the first use wins.
//
// # Quick Start
//
//	package main
//
//	import (
//		"unsafe"
//
//		"github.com/kolkov/borrowsan/borrow"
//	)
//
//	func main() {
//		borrow.Init()
//		defer borrow.Fini()
//
//		var x int
//		p := &x
//
//		// Manual instrumentation (normally emitted by a compiler pass).
//		borrow.TrackAlloc(uintptr(unsafe.Pointer(p)))
//		borrow.CheckAccess(uintptr(unsafe.Pointer(p)))
//		*p = 42
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and finalization: [Init], [InitWithConfig], [Fini]
//   - Borrow tracking: [TrackAlloc], [TrackBorrow], [CheckAccess], [TrackFree]
//   - Tagged-allocation mode: [Register], [Check], [Revoke]
//   - Violation trapping in test drivers: [Trap]
//   - Runtime control: [Enable], [Disable], [Reset]
//   - Version information: [GetInfo], [Version]
//
// # Violations
//
// A policy breach is fatal to the monitored execution: the runtime
// prints a diagnostic to stderr and panics with a [*Violation]. Test
// drivers that expect a violation wrap the offending code in [Trap],
// which recovers the panic and returns the violation for inspection.
// Accesses to memory the runtime has never seen are not violations:
// they produce a warning and execution continues.
//
// # Tagged-Allocation Mode
//
// Borrow provenance cannot follow a pointer through uninstrumented
// foreign code. For memory crossing that boundary, [Register] issues a
// secret per-allocation tag; [Check] validates it before each use and
// [Revoke] rotates it when the region is handed over, so every
// outstanding reference goes stale at once.
//
// # Concurrency
//
// Borrow state is strictly per-goroutine: each goroutine gets its own
// tree, and events on one goroutine never revoke pointers tracked on
// another. Cross-goroutine data races are a different problem with
// different machinery (a race detector); this runtime checks aliasing
// discipline within each goroutine. The tagged-allocation registry is
// the exception - it is process-global and safe for concurrent use.
package borrow
