// Package shadowmap implements the address-to-node index for the
// borrow monitor.
//
// The shadow map is the only bridge between raw addresses observed in
// the instrumentation stream and the logical borrow tree: every
// tracked pointer address maps to the NodeID that represents it. The
// monitor never dereferences an address - it is an opaque integer key.
package shadowmap

import "github.com/kolkov/borrowsan/internal/borrow/tree"

// Map translates observed pointer addresses to borrow-tree node IDs.
//
// Implementation: a plain Go map. Unlike a race detector's shadow
// memory, this index is touched by exactly one goroutine (the monitor
// is confined to the event source's goroutine), so no internal locking
// is needed and the read path stays a single map lookup.
type Map struct {
	entries map[uintptr]tree.NodeID
}

// New creates an empty shadow map ready for use.
func New() *Map {
	return &Map{entries: make(map[uintptr]tree.NodeID)}
}

// Insert binds addr to id. Insertion under an existing key overwrites;
// the event-source contract forbids this outside the
// invalidate-then-register pattern.
func (m *Map) Insert(addr uintptr, id tree.NodeID) {
	m.entries[addr] = id
}

// Get returns the node bound to addr, if any.
//
//go:nosplit
func (m *Map) Get(addr uintptr) (tree.NodeID, bool) {
	id, ok := m.entries[addr]
	return id, ok
}

// Contains reports whether addr is tracked.
//
//go:nosplit
func (m *Map) Contains(addr uintptr) bool {
	_, ok := m.entries[addr]
	return ok
}

// Remove deletes the binding for addr. Removing an absent key is a
// no-op.
func (m *Map) Remove(addr uintptr) {
	delete(m.entries, addr)
}

// Len returns the number of tracked addresses.
func (m *Map) Len() int {
	return len(m.entries)
}

// Reset clears all bindings.
//
// Primarily used in test setup/teardown and monitor re-initialization.
func (m *Map) Reset() {
	m.entries = make(map[uintptr]tree.NodeID)
}
