package shadowmap

import (
	"testing"

	"github.com/kolkov/borrowsan/internal/borrow/tree"
)

// TestInsertGet tests the basic bind-then-lookup cycle.
func TestInsertGet(t *testing.T) {
	m := New()

	if _, ok := m.Get(0x100); ok {
		t.Fatalf("Get on empty map reported a hit")
	}

	m.Insert(0x100, tree.NodeID(0))
	m.Insert(0x101, tree.NodeID(1))

	tests := []struct {
		addr   uintptr
		wantID tree.NodeID
		wantOK bool
	}{
		{0x100, 0, true},
		{0x101, 1, true},
		{0x102, 0, false},
	}

	for _, tt := range tests {
		id, ok := m.Get(tt.addr)
		if ok != tt.wantOK {
			t.Errorf("Get(0x%x) ok = %v, want %v", tt.addr, ok, tt.wantOK)
			continue
		}
		if ok && id != tt.wantID {
			t.Errorf("Get(0x%x) = %v, want %v", tt.addr, id, tt.wantID)
		}
	}

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

// TestInsertOverwrites verifies the invalidate-then-register pattern.
func TestInsertOverwrites(t *testing.T) {
	m := New()
	m.Insert(0x200, tree.NodeID(0))
	m.Insert(0x200, tree.NodeID(7))

	if id, _ := m.Get(0x200); id != 7 {
		t.Errorf("Get after overwrite = %v, want 7", id)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

// TestRemove tests removal and its idempotence.
func TestRemove(t *testing.T) {
	m := New()
	m.Insert(0x300, tree.NodeID(3))

	m.Remove(0x300)
	if m.Contains(0x300) {
		t.Errorf("address still tracked after Remove")
	}

	m.Remove(0x300) // absent key: no-op
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

// TestReset verifies Reset forgets all bindings.
func TestReset(t *testing.T) {
	m := New()
	m.Insert(0x400, tree.NodeID(0))
	m.Insert(0x401, tree.NodeID(1))

	m.Reset()

	if m.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", m.Len())
	}
	if m.Contains(0x400) {
		t.Errorf("address survived Reset")
	}
}
