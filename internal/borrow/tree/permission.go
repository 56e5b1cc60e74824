// Package tree implements the borrow tree: an arena-backed forest that
// records pointer provenance and enforces revocation semantics.
//
// Each allocation introduces a new root; each reborrow appends a child
// node carrying the permission the pointer was derived with. Nodes are
// never removed - revocation only flips their liveness bit, and a
// pointer is usable exactly while every node on its path to the root
// remains live.
package tree

// Permission is the capability a pointer was derived with.
//
// There are exactly two variants. Shared pointers are read-only and may
// alias each other freely; Mutable pointers demand exclusivity, which
// the monitor enforces lazily on first use rather than at derivation
// time. Roots are implicitly Mutable (the allocation owns its memory).
type Permission uint8

const (
	// Shared grants read-only access. Any number of Shared pointers
	// to the same parent may coexist.
	Shared Permission = iota

	// Mutable grants write access and requires exclusivity when used.
	Mutable
)

// String returns a human-readable representation of the permission.
//
// Used in violation reports and debugging output, not on the hot path.
func (p Permission) String() string {
	switch p {
	case Shared:
		return "Shared"
	case Mutable:
		return "Mutable"
	default:
		return "Unknown"
	}
}
