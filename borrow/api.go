// Package borrow provides the public API for the borrowsan runtime.
//
// See doc.go for detailed documentation and examples.
package borrow

import (
	"github.com/kolkov/borrowsan/internal/borrow/api"
	"github.com/kolkov/borrowsan/internal/borrow/config"
	"github.com/kolkov/borrowsan/internal/borrow/report"
	"github.com/kolkov/borrowsan/internal/borrow/tree"
)

// Permission is the access level a pointer was created with.
//
// A pointer's permission fixes its access intent: Shared pointers
// read, Mutable pointers write.
type Permission uint8

const (
	// Shared grants read access. Shared pointers coexist with each
	// other indefinitely.
	Shared Permission = iota

	// Mutable grants write access. Using a Mutable pointer revokes
	// every pointer it must be exclusive against.
	Mutable
)

// String returns the permission name.
func (p Permission) String() string {
	return tree.Permission(p).String()
}

// Violation describes a fatal aliasing policy breach.
//
// The runtime panics with a *Violation after printing its diagnostic;
// recover one with Trap.
type Violation struct {
	// Kind identifies the breach: "use-after-revocation",
	// "untracked-parent", "invalidated-parent",
	// "duplicate-allocation", or "tag-mismatch".
	Kind string

	// Addr is the offending address.
	Addr uintptr

	// Reason is the human-readable explanation from the diagnostic.
	Reason string

	// Expected and Actual carry the presented and active tags for
	// "tag-mismatch" violations; zero otherwise.
	Expected uint64
	Actual   uint64
}

// Error makes *Violation usable as an error value.
func (v *Violation) Error() string {
	rv := report.Violation(*v)
	return rv.Error()
}

// Init initializes the runtime with default options: lazy revocation,
// warnings enabled, diagnostics to stderr.
//
// Call it at program startup, before spawning instrumented goroutines:
//
//	func main() {
//		borrow.Init()
//		defer borrow.Fini()
//		// ... rest of program
//	}
//
// Init is idempotent; calling it again starts a fresh session.
func Init() {
	api.Init()
}

// InitWithConfig initializes the runtime from a borrowsan.yml
// configuration file, selecting the enforcement mode and diagnostic
// verbosity.
func InitWithConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	api.InitWithOptions(cfg.MonitorOptions())
	return nil
}

// Fini finalizes the runtime and prints a session summary to stderr.
//
// Typically deferred in main right after Init. After Fini the tracking
// functions are no-ops until the next Init.
func Fini() {
	api.Fini()
}

// TrackAlloc records an allocation: addr becomes the root of a fresh
// borrow tree on the calling goroutine.
//
// Instrumentation emits this when an owned value is created:
//
//	x := new(T)  // TrackAlloc(uintptr(unsafe.Pointer(x)))
func TrackAlloc(addr uintptr) {
	api.TrackAlloc(addr)
}

// TrackBorrow records a reborrow: newAddr is derived from parentAddr
// with the given permission.
//
// Deriving from an address the runtime has never seen, or from a
// pointer that has already been revoked, is a fatal violation.
func TrackBorrow(parentAddr, newAddr uintptr, perm Permission) {
	api.TrackBorrow(parentAddr, newAddr, tree.Permission(perm))
}

// CheckAccess records a use of the pointer at addr and enforces the
// aliasing policy. The pointer's own permission determines the access
// intent.
//
// A use through a revoked pointer (or one with a revoked ancestor) is
// a fatal violation. An address the runtime has never seen produces a
// warning and execution continues.
func CheckAccess(addr uintptr) {
	api.CheckAccess(addr)
}

// TrackFree records deallocation of addr: the binding is dropped and
// every pointer derived from it is revoked.
func TrackFree(addr uintptr) {
	api.TrackFree(addr)
}

// Register adds the region [base, base+size) to the tagged-allocation
// registry and returns its capability tag. Hold the tag and present it
// to Check before each use of the region.
func Register(base uintptr, size int) uint64 {
	return api.Register(base, size)
}

// Check validates a tagged-allocation capability. A stale or revoked
// tag is a fatal violation; an unregistered base warns and continues.
func Check(base uintptr, tag uint64) {
	api.Check(base, tag)
}

// Revoke rotates the region's active tag, invalidating every
// outstanding capability for it at once. Idempotent.
func Revoke(base uintptr) {
	api.Revoke(base)
}

// Trap runs fn and returns the violation it raises, or nil for a
// clean run. Panics that are not violations propagate unchanged.
//
// This is the unwind barrier for test drivers:
//
//	if v := borrow.Trap(func() { borrow.CheckAccess(stale) }); v == nil {
//		t.Fatal("expected a violation")
//	}
func Trap(fn func()) *Violation {
	rv := report.Trap(fn)
	if rv == nil {
		return nil
	}
	v := Violation(*rv)
	return &v
}

// Enable turns tracking on without resetting state.
func Enable() {
	api.Enable()
}

// Disable turns tracking off without resetting state. Useful around
// code regions known to be outside the model.
func Disable() {
	api.Disable()
}

// Reset discards all tracked state (every goroutine's borrow tree and
// the tag registry) but keeps the session running.
func Reset() {
	api.Reset()
}

// ViolationsDetected returns the total violations raised this session,
// across all goroutines and the tag registry.
func ViolationsDetected() int {
	return api.ViolationsDetected()
}
