package borrow_test

import (
	"fmt"
	"unsafe"

	"github.com/kolkov/borrowsan/borrow"
)

// Example demonstrates basic borrow tracking with manual
// instrumentation.
func Example() {
	borrow.Init()
	defer borrow.Disable()

	var x int
	base := uintptr(unsafe.Pointer(&x))

	borrow.TrackAlloc(base)
	borrow.TrackBorrow(base, base+1, borrow.Shared)
	borrow.CheckAccess(base + 1)

	fmt.Println("no violation")
	// Output: no violation
}

// Example_trap shows how a test driver catches an expected violation:
// the used writer revokes its shared sibling, so the reader's next
// access is fatal.
func Example_trap() {
	borrow.Init()
	defer borrow.Disable()

	borrow.TrackAlloc(0x100)
	borrow.TrackBorrow(0x100, 0x101, borrow.Shared)
	borrow.TrackBorrow(0x100, 0x102, borrow.Mutable)
	borrow.CheckAccess(0x102) // writer used first

	v := borrow.Trap(func() {
		borrow.CheckAccess(0x101) // stale reader
	})
	fmt.Println(v.Kind)
	// Output: use-after-revocation
}

// Example_taggedAllocation shows the foreign-boundary lifecycle:
// register, validate, hand over, and observe the stale capability.
func Example_taggedAllocation() {
	borrow.Init()
	defer borrow.Disable()

	tag := borrow.Register(0x500, 4)
	borrow.Check(0x500, tag) // fresh capability: fine

	borrow.Revoke(0x500) // foreign code took over

	v := borrow.Trap(func() {
		borrow.Check(0x500, tag)
	})
	fmt.Println(v.Kind)
	// Output: tag-mismatch
}
