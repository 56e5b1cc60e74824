// Package report defines the violation value raised by the borrow
// monitor and the tagged-allocation registry, and formats the
// diagnostic written to stderr before the monitored execution is
// aborted.
//
// A violation is fatal: after the diagnostic is written the violation
// is raised as a panic carrying *Violation, so test drivers can catch
// it with Trap (an unwind barrier) while untrapped violations
// terminate the process with a non-zero status.
package report

import (
	"fmt"
	"io"
	"strings"
)

// Violation kind constants.
//
// Kinds are plain strings so a report key can be built by
// concatenation and so the public facade can re-export the violation
// value without dragging internal types along.
const (
	// KindUseAfterRevocation is an access through a pointer whose
	// node, or any ancestor of it, has been revoked.
	KindUseAfterRevocation = "use-after-revocation"

	// KindUntrackedParent is a reborrow from an address the monitor
	// has never seen.
	KindUntrackedParent = "untracked-parent"

	// KindInvalidatedParent is a reborrow from a node that has
	// already been revoked.
	KindInvalidatedParent = "invalidated-parent"

	// KindDuplicateAlloc is an allocation event for an address that
	// is already tracked (an event-source contract breach).
	KindDuplicateAlloc = "duplicate-allocation"

	// KindTagMismatch is a tagged-allocation check presenting a tag
	// that no longer matches the record's active tag.
	KindTagMismatch = "tag-mismatch"
)

// Violation describes a fatal policy breach.
//
// Expected and Actual carry tag values and are meaningful only for
// KindTagMismatch; for borrow-tree kinds they are zero and omitted
// from the diagnostic.
type Violation struct {
	// Kind is one of the Kind* constants.
	Kind string

	// Addr is the offending address (the accessed pointer, the
	// reborrow source, or the tagged-allocation base).
	Addr uintptr

	// Reason is the human-readable explanation printed in the
	// diagnostic.
	Reason string

	// Expected is the tag the caller presented (tag-mismatch only).
	Expected uint64

	// Actual is the record's active tag (tag-mismatch only).
	Actual uint64
}

// Error makes *Violation usable as an error value.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s at 0x%x: %s", v.Kind, v.Addr, v.Reason)
}

// Format writes the multi-line diagnostic to w.
//
// The banner framing matches the summary reports the runtime prints at
// shutdown, so interleaved output stays scannable:
//
//	==================
//	SECURITY VIOLATION
//	Kind:    use-after-revocation
//	Address: 0x101
//	Reason:  pointer or one of its ancestors has been revoked
//	==================
//
//nolint:errcheck // stderr output formatting
func (v *Violation) Format(w io.Writer) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "SECURITY VIOLATION\n")
	fmt.Fprintf(w, "Kind:    %s\n", v.Kind)
	fmt.Fprintf(w, "Address: 0x%x\n", v.Addr)
	if v.Kind == KindTagMismatch {
		fmt.Fprintf(w, "Expected Tag: 0x%016x\n", v.Expected)
		fmt.Fprintf(w, "Actual Tag:   0x%016x\n", v.Actual)
	}
	fmt.Fprintf(w, "Reason:  %s\n", v.Reason)
	fmt.Fprintf(w, "==================\n")
}

// String returns the formatted diagnostic as a string.
func (v *Violation) String() string {
	var buf strings.Builder
	v.Format(&buf)
	return buf.String()
}

// Raise writes the diagnostic to w and aborts the monitored execution
// by panicking with the violation.
//
// The panic is the unwindable fatal signal: drivers that expect a
// violation recover it with Trap; anything else unwinds to process
// exit with a non-zero status.
func Raise(w io.Writer, v *Violation) {
	v.Format(w)
	panic(v)
}

// Warn writes a non-fatal diagnostic line to w.
//
// Used for accesses and checks on untracked memory, which are outside
// policy: the monitor notes them and continues.
//
//nolint:errcheck // stderr output formatting
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "WARNING: "+format+"\n", args...)
}

// Trap runs fn and catches the violation it raises, if any.
//
// This is the unwind barrier the error-handling contract promises to
// test drivers: a trapped violation is returned for inspection, any
// other panic propagates unchanged, and a clean run returns nil.
func Trap(fn func()) (v *Violation) {
	defer func() {
		if r := recover(); r != nil {
			rv, ok := r.(*Violation)
			if !ok {
				panic(r)
			}
			v = rv
		}
	}()
	fn()
	return nil
}
