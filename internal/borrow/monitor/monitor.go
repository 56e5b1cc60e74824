// Package monitor implements the reference monitor that consumes the
// instrumentation event stream and enforces Aliasing XOR Mutability
// over the borrow tree.
//
// The monitor translates three events - alloc, reborrow, access - into
// borrow-tree and shadow-map operations. Revocation is lazy: creating
// conflicting pointers is always allowed, and the conflict is resolved
// in favor of whichever pointer is actually used first. Revocation at
// creation time would kill pointers on never-taken branches; deferring
// it implements "first actual use wins exclusivity" while staying
// permissive enough for practical programs.
package monitor

import (
	"io"
	"os"

	"github.com/kolkov/borrowsan/internal/borrow/report"
	"github.com/kolkov/borrowsan/internal/borrow/shadowmap"
	"github.com/kolkov/borrowsan/internal/borrow/tree"
)

// Mode selects when sibling revocation runs.
type Mode int

const (
	// ModeLazy defers all revocation to access time. This is the
	// default and the intended semantics of the model.
	ModeLazy Mode = iota

	// ModeEager additionally revokes the parent's other children the
	// moment a Mutable reborrow is created. It reproduces the
	// stricter historical variant of the model and exists for
	// comparison; it kills pointers on branches that are never taken.
	ModeEager
)

// String returns the mode name as used in configuration files.
func (m Mode) String() string {
	switch m {
	case ModeLazy:
		return "lazy"
	case ModeEager:
		return "eager"
	default:
		return "unknown"
	}
}

// Options configures a Monitor.
//
// The zero value is ready to use: lazy revocation, warnings enabled,
// diagnostics to stderr.
type Options struct {
	// Mode selects lazy (default) or eager sibling revocation.
	Mode Mode

	// Quiet suppresses non-fatal untracked-access warnings.
	// Violations are always reported.
	Quiet bool

	// Output receives diagnostics. Nil means os.Stderr.
	Output io.Writer
}

// Monitor is the per-goroutine reference monitor.
//
// It owns one borrow tree and one shadow map and applies events in
// arrival order; all revocation triggered by an event completes before
// the next event is observed. A Monitor is deliberately NOT safe for
// concurrent use - each instrumented goroutine gets its own instance,
// and cross-goroutine aliasing is outside this model.
type Monitor struct {
	tree   *tree.Tree
	shadow *shadowmap.Map
	opts   Options

	violations int
	warnings   int
}

// New creates a monitor with the given options.
func New(opts Options) *Monitor {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Monitor{
		tree:   tree.New(),
		shadow: shadowmap.New(),
		opts:   opts,
	}
}

// OnAlloc handles an allocation event: a fresh root node bound to addr.
//
// No revocation runs - a new allocation cannot conflict with anything.
// An addr that is already tracked breaches the event-source contract
// (alloc without an intervening free) and is fatal.
func (m *Monitor) OnAlloc(addr uintptr) {
	if m.shadow.Contains(addr) {
		m.fail(&report.Violation{
			Kind:   report.KindDuplicateAlloc,
			Addr:   addr,
			Reason: "allocation event for an address that is already tracked",
		})
	}

	root := m.tree.SpawnRoot()
	m.shadow.Insert(addr, root)
}

// OnReborrow handles a pointer derivation: a child of the node bound
// to parentAddr, bound to newAddr with the given permission.
//
// Two failure cases, both fatal: the parent address was never tracked,
// or the parent node has already been revoked. In the default lazy
// mode nothing is revoked here - the new pointer and its siblings all
// stay live until one of them is used.
func (m *Monitor) OnReborrow(parentAddr, newAddr uintptr, perm tree.Permission) {
	// Step 1: Resolve the derivation source.
	parentID, ok := m.shadow.Get(parentAddr)
	if !ok {
		m.fail(&report.Violation{
			Kind:   report.KindUntrackedParent,
			Addr:   parentAddr,
			Reason: "reborrow from an address the monitor has never seen",
		})
	}

	// Step 2: Append the child. SpawnChild rejects revoked parents.
	childID, ok := m.tree.SpawnChild(parentID, perm)
	if !ok {
		m.fail(&report.Violation{
			Kind:   report.KindInvalidatedParent,
			Addr:   parentAddr,
			Reason: "reborrow from a pointer that has already been revoked",
		})
	}

	// Step 3: Bind the derived address.
	m.shadow.Insert(newAddr, childID)

	// Step 4: Eager mode only - a Mutable derivation immediately
	// claims exclusivity among its siblings.
	if m.opts.Mode == ModeEager && perm == tree.Mutable {
		m.tree.RevokeSiblingsExcept(parentID, childID)
	}
}

// OnAccess handles a use of the pointer bound to addr.
//
// The access intent is read from the pointer's own permission: a
// Mutable pointer accesses to write, a Shared pointer to read. The
// enforcement order is fixed:
//
//  1. Provenance check - the pointer and every ancestor must be live.
//     A dead chain fails here and does not alter the tree.
//  2. Vertical enforcement - a writer freezes everything derived from
//     it (its whole child forest is revoked).
//  3. Horizontal enforcement - a writer kills all of its siblings; a
//     reader kills only its Mutable siblings, so readers coexist.
//
// Vertical precedes horizontal so the survivor's own subtree is dead
// before any sibling operation runs; no sibling pruning can touch a
// node the vertical pass still needs.
//
// Untracked addresses are outside policy: the monitor warns (unless
// quiet) and continues.
func (m *Monitor) OnAccess(addr uintptr) {
	id, ok := m.shadow.Get(addr)
	if !ok {
		m.warn("accessing untracked memory at 0x%x", addr)
		return
	}

	// Step 1: Provenance.
	if !m.tree.IsValid(id) {
		m.fail(&report.Violation{
			Kind:   report.KindUseAfterRevocation,
			Addr:   addr,
			Reason: "pointer or one of its ancestors has been revoked",
		})
	}

	perm, _ := m.tree.Perm(id)

	// Step 2: Vertical enforcement.
	if perm == tree.Mutable {
		m.tree.RevokeAllChildren(id)
	}

	// Step 3: Horizontal enforcement. Roots have no siblings, so
	// accessing a root never touches anything outside its subtree.
	if parent, ok := m.tree.Parent(id); ok {
		switch perm {
		case tree.Mutable:
			m.tree.RevokeSiblingsExcept(parent, id)
		case tree.Shared:
			m.tree.RevokeMutableSiblings(parent, id)
		}
	}
}

// OnFree handles an optional invalidate event: the shadow binding is
// removed and the node's whole subtree revoked, so stale derived
// pointers fail their next provenance check.
//
// Freeing an untracked address warns and continues, mirroring
// OnAccess.
func (m *Monitor) OnFree(addr uintptr) {
	id, ok := m.shadow.Get(addr)
	if !ok {
		m.warn("freeing untracked memory at 0x%x", addr)
		return
	}

	m.shadow.Remove(addr)
	m.tree.DeepRevoke(id)
}

// Tree exposes the underlying borrow tree for tests and debugging.
func (m *Monitor) Tree() *tree.Tree {
	return m.tree
}

// Shadow exposes the underlying shadow map for tests and debugging.
func (m *Monitor) Shadow() *shadowmap.Map {
	return m.shadow
}

// ViolationsDetected returns the number of violations this monitor has
// raised.
//
// Violations are fatal to the monitored execution, so the count only
// exceeds one when a driver traps the unwind and keeps feeding events.
func (m *Monitor) ViolationsDetected() int {
	return m.violations
}

// WarningsEmitted returns the number of non-fatal untracked-memory
// diagnostics emitted.
func (m *Monitor) WarningsEmitted() int {
	return m.warnings
}

// Reset clears all monitor state for reuse in test setup/teardown.
func (m *Monitor) Reset() {
	m.tree = tree.New()
	m.shadow.Reset()
	m.violations = 0
	m.warnings = 0
}

// fail counts, reports, and raises a fatal violation. It does not
// return.
func (m *Monitor) fail(v *report.Violation) {
	m.violations++
	report.Raise(m.opts.Output, v)
}

// warn emits a non-fatal diagnostic unless the monitor is quiet.
func (m *Monitor) warn(format string, args ...any) {
	m.warnings++
	if m.opts.Quiet {
		return
	}
	report.Warn(m.opts.Output, format, args...)
}
