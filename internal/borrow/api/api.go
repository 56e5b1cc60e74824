// Package api implements the process-wide entry points behind the
// public borrow facade.
//
// These functions are what instrumentation calls on every allocation,
// reborrow, and access, so the dispatch has to stay cheap: an atomic
// enabled check, a goroutine ID lookup, then a sync.Map hit for the
// goroutine's monitor.
//
// Monitor state is strictly per-goroutine. Each goroutine owns one
// borrow tree and one shadow map, and no event ever touches another
// goroutine's state - cross-goroutine aliasing is outside this model
// (that is the race detector's job, not the borrow checker's). The
// tagged-allocation registry is the one shared piece of state, because
// foreign code may touch a registered region from any thread.
package api

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kolkov/borrowsan/internal/borrow/monitor"
	"github.com/kolkov/borrowsan/internal/borrow/tagmap"
	"github.com/kolkov/borrowsan/internal/borrow/tree"
)

// Global runtime state.
//
// Initialized by Init/InitWithOptions and constant between Init and
// Fini. The monitors map grows one entry per instrumented goroutine.
var (
	// enabled gates every tracking entry point. Cleared by Fini and
	// Disable so instrumented code keeps running after shutdown.
	enabled atomic.Bool

	// monitors maps goroutine ID (int64) to *monitor.Monitor.
	// sync.Map fits the access pattern: each goroutine writes its
	// entry once and reads it on every subsequent event.
	monitors sync.Map

	// tags is the process-global tagged-allocation registry.
	tags *tagmap.TagMap

	// optsMu guards opts and sessionID, which are written only during
	// Init and read when a new goroutine's monitor is created.
	optsMu    sync.Mutex
	opts      monitor.Options
	sessionID string
)

func init() {
	tags = tagmap.New(nil)
}

// Init initializes the runtime with default options: lazy revocation,
// warnings on, diagnostics to stderr.
//
// Call it at program startup before spawning instrumented goroutines.
// Init is idempotent; calling it again discards all tracked state and
// starts a fresh session.
func Init() {
	InitWithOptions(monitor.Options{})
}

// InitWithOptions initializes the runtime with explicit options, which
// apply to every per-goroutine monitor created during the session.
//
// Not safe for concurrent use with tracking calls; initialize before
// instrumented goroutines start.
func InitWithOptions(o monitor.Options) {
	optsMu.Lock()
	opts = o
	sessionID = uuid.NewString()
	optsMu.Unlock()

	monitors = sync.Map{}
	tags = tagmap.New(o.Output)
	enabled.Store(true)
}

// Fini disables the runtime and prints the session summary to stderr.
//
// After Fini the tracking entry points are no-ops until the next Init.
func Fini() {
	enabled.Store(false)

	violations := ViolationsDetected()
	warnings := WarningsEmitted()

	optsMu.Lock()
	session := sessionID
	optsMu.Unlock()

	w := summaryWriter()
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Borrow Sanitizer Report\n")
	fmt.Fprintf(w, "Session: %s\n", session)
	fmt.Fprintf(w, "==================\n")
	if violations == 0 {
		fmt.Fprintf(w, "✓ No aliasing violations detected.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %d aliasing violation(s) detected!\n", violations)
		fmt.Fprintf(w, "\nSee above for details.\n")
	}
	if warnings > 0 {
		fmt.Fprintf(w, "%d untracked-memory warning(s).\n", warnings)
	}
	fmt.Fprintf(w, "==================\n\n")
}

func summaryWriter() io.Writer {
	optsMu.Lock()
	defer optsMu.Unlock()
	if opts.Output != nil {
		return opts.Output
	}
	return os.Stderr
}

// Enable turns tracking back on without resetting state.
func Enable() {
	enabled.Store(true)
}

// Disable turns tracking off without resetting state. Useful around
// code regions known to be outside the model.
func Disable() {
	enabled.Store(false)
}

// Enabled reports whether tracking is active.
func Enabled() bool {
	return enabled.Load()
}

// Reset discards all tracked state (every goroutine's monitor and the
// tag registry) but keeps the session and options.
func Reset() {
	monitors = sync.Map{}
	tags.Reset()
}

// currentMonitor returns the calling goroutine's monitor, creating it
// on first use with the session options.
func currentMonitor() *monitor.Monitor {
	gid := getGoroutineID()

	if m, ok := monitors.Load(gid); ok {
		return m.(*monitor.Monitor)
	}

	optsMu.Lock()
	o := opts
	optsMu.Unlock()

	m, _ := monitors.LoadOrStore(gid, monitor.New(o))
	return m.(*monitor.Monitor)
}

// TrackAlloc records an allocation event: addr becomes the root of a
// fresh borrow tree in the calling goroutine's monitor.
func TrackAlloc(addr uintptr) {
	if !enabled.Load() {
		return
	}
	currentMonitor().OnAlloc(addr)
}

// TrackBorrow records a reborrow: newAddr is derived from parentAddr
// with the given permission.
func TrackBorrow(parentAddr, newAddr uintptr, perm tree.Permission) {
	if !enabled.Load() {
		return
	}
	currentMonitor().OnReborrow(parentAddr, newAddr, perm)
}

// CheckAccess records a use of the pointer at addr and enforces the
// aliasing policy. A violation aborts the monitored execution.
func CheckAccess(addr uintptr) {
	if !enabled.Load() {
		return
	}
	currentMonitor().OnAccess(addr)
}

// TrackFree records deallocation of addr: the binding is dropped and
// the whole subtree revoked.
func TrackFree(addr uintptr) {
	if !enabled.Load() {
		return
	}
	currentMonitor().OnFree(addr)
}

// Register adds [base, base+size) to the tagged-allocation registry
// and returns its capability tag. Returns 0 when the runtime is
// disabled (0 is never a valid tag).
func Register(base uintptr, size int) uint64 {
	if !enabled.Load() {
		return 0
	}
	return tags.Register(base, size)
}

// Check validates a tagged-allocation capability.
func Check(base uintptr, tag uint64) {
	if !enabled.Load() {
		return
	}
	tags.Check(base, tag)
}

// Revoke rotates the region's tag, invalidating all outstanding
// capabilities for it.
func Revoke(base uintptr) {
	if !enabled.Load() {
		return
	}
	tags.Revoke(base)
}

// ViolationsDetected returns the total violations across all
// goroutine monitors and the tag registry.
func ViolationsDetected() int {
	total := tags.ViolationsDetected()
	monitors.Range(func(_, v any) bool {
		total += v.(*monitor.Monitor).ViolationsDetected()
		return true
	})
	return total
}

// WarningsEmitted returns the total untracked-memory warnings across
// all goroutine monitors and the tag registry.
func WarningsEmitted() int {
	total := tags.WarningsEmitted()
	monitors.Range(func(_, v any) bool {
		total += v.(*monitor.Monitor).WarningsEmitted()
		return true
	})
	return total
}
