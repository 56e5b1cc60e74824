package tree

// NodeID is a stable index into the tree's node arena.
//
// IDs are assigned on creation and never reused; a NodeID stays
// meaningful for the lifetime of the tree even after the node it names
// has been revoked.
type NodeID int

// NoParent is the parent value carried by root nodes.
const NoParent NodeID = -1

// Node is a single entry in the borrow forest.
//
// Once appended, ID, Parent and Perm are fixed. Only Active and
// Children ever change: Active transitions from true to false exactly
// once, and Children may be pruned after sibling revocation (pruning
// never resurrects a revoked node - entries removed from the list are
// already inactive).
type Node struct {
	// ID is the node's index in the arena.
	ID NodeID

	// Parent is the derivation source, or NoParent for roots.
	Parent NodeID

	// Children lists derived nodes in creation order. The order has
	// no semantic significance beyond iteration stability.
	Children []NodeID

	// Perm is the permission the pointer was derived with.
	Perm Permission

	// Active is the liveness bit. Starts true, falls to false on
	// revocation, never rises again.
	Active bool
}

// Tree is an append-only arena of nodes forming a forest.
//
// Nodes refer to one another by integer ID only; the arena owns all of
// them, so there is no shared ownership and no possibility of cycles.
// The forest has no global root - every allocation spawns its own.
//
// Thread Safety: none. A Tree belongs to exactly one monitor, which is
// confined to one goroutine by design.
type Tree struct {
	nodes []Node
}

// New creates an empty borrow tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of nodes ever created, live or revoked.
//
//go:nosplit
func (t *Tree) Len() int {
	return len(t.nodes)
}

// contains reports whether id names an existing node.
//
//go:nosplit
func (t *Tree) contains(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// SpawnRoot appends a new active root node and returns its ID.
//
// Roots have no parent and are implicitly Mutable: the allocation owns
// its memory. This operation is total - it cannot fail.
func (t *Tree) SpawnRoot() NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:     id,
		Parent: NoParent,
		Perm:   Mutable,
		Active: true,
	})
	return id
}

// SpawnChild appends a new active node derived from parent with the
// given permission and links it into the parent's child list.
//
// Returns (id, true) on success. If parent is unknown or has already
// been revoked the derivation is rejected and (0, false) is returned;
// the caller treats this as a fatal "derivation from invalidated
// parent". No revocation happens here - conflicts between siblings are
// resolved lazily, when one of them is actually used.
func (t *Tree) SpawnChild(parent NodeID, perm Permission) (NodeID, bool) {
	if !t.contains(parent) || !t.nodes[parent].Active {
		return 0, false
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:     id,
		Parent: parent,
		Perm:   perm,
		Active: true,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id, true
}

// DeepRevoke sets Active = false for id and every descendant reachable
// through Children.
//
// The traversal is iterative with an explicit work stack: derivation
// chains can be arbitrarily deep, and recursive descent would risk
// stack exhaustion. Popping an already-inactive node prunes the
// traversal - its subtree was fully revoked by whichever operation
// deactivated it, so re-enqueueing its children would only redo work.
//
// Idempotent: revoking a dead node is a no-op.
func (t *Tree) DeepRevoke(id NodeID) {
	if !t.contains(id) {
		return
	}

	stack := []NodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &t.nodes[n]
		if !node.Active {
			// Subtree already dead; prune.
			continue
		}
		node.Active = false
		stack = append(stack, node.Children...)
	}
}

// RevokeSiblingsExcept deep-revokes every child of parent other than
// survivor, then prunes the parent's child list to the survivor alone.
//
// This is the horizontal rule for exclusive (Mutable) use: the first
// sibling to actually assert exclusivity kills the rest. The child
// list is snapshotted before any revocation - DeepRevoke mutates the
// tree, and iterating a list we are mutating would be a bug.
func (t *Tree) RevokeSiblingsExcept(parent, survivor NodeID) {
	if !t.contains(parent) {
		return
	}

	siblings := append([]NodeID(nil), t.nodes[parent].Children...)
	kept := false
	for _, sib := range siblings {
		if sib == survivor {
			kept = true
			continue
		}
		t.DeepRevoke(sib)
	}

	// Pruning is a representational optimization: everything removed
	// is already inactive, so nothing can be resurrected.
	if kept {
		t.nodes[parent].Children = []NodeID{survivor}
	} else {
		t.nodes[parent].Children = nil
	}
}

// RevokeMutableSiblings deep-revokes every Mutable child of parent
// other than survivor. Shared siblings are untouched - readers coexist.
//
// This is the horizontal rule for Shared use: a reader only needs the
// dormant writers gone.
func (t *Tree) RevokeMutableSiblings(parent, survivor NodeID) {
	if !t.contains(parent) {
		return
	}

	siblings := append([]NodeID(nil), t.nodes[parent].Children...)
	for _, sib := range siblings {
		if sib == survivor || t.nodes[sib].Perm != Mutable {
			continue
		}
		t.DeepRevoke(sib)
	}
}

// RevokeAllChildren deep-revokes every child of id.
//
// This is the vertical rule: a parent reasserting use (a write through
// it) freezes everything derived from it.
func (t *Tree) RevokeAllChildren(id NodeID) {
	if !t.contains(id) {
		return
	}

	children := append([]NodeID(nil), t.nodes[id].Children...)
	for _, child := range children {
		t.DeepRevoke(child)
	}
}

// IsValid walks from id to its root via Parent and reports whether
// every node on the path exists and is active.
//
// This is the provenance check: a pointer is live iff its entire
// derivation chain is live. IsValid never mutates the tree - repeated
// calls yield the same answer until a mutating operation runs.
func (t *Tree) IsValid(id NodeID) bool {
	if !t.contains(id) {
		return false
	}

	for n := id; n != NoParent; n = t.nodes[n].Parent {
		if !t.contains(n) || !t.nodes[n].Active {
			return false
		}
	}
	return true
}

// Perm returns the permission of id, or (0, false) for unknown IDs.
//
//go:nosplit
func (t *Tree) Perm(id NodeID) (Permission, bool) {
	if !t.contains(id) {
		return 0, false
	}
	return t.nodes[id].Perm, true
}

// Parent returns the parent of id. For roots and unknown IDs the
// second result is false.
//
//go:nosplit
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	if !t.contains(id) || t.nodes[id].Parent == NoParent {
		return NoParent, false
	}
	return t.nodes[id].Parent, true
}

// Active reports the liveness bit of id itself, without walking to the
// root. Unknown IDs are inactive.
//
//go:nosplit
func (t *Tree) Active(id NodeID) bool {
	return t.contains(id) && t.nodes[id].Active
}

// Children returns a copy of id's child list.
//
// The copy keeps callers from observing pruning mid-iteration. Used by
// tests and debugging output, not on the hot path.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.contains(id) {
		return nil
	}
	return append([]NodeID(nil), t.nodes[id].Children...)
}
