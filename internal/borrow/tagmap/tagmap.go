// Package tagmap implements Tagged-Allocation Mode (TAM), the flat
// companion to the borrow tree for memory that crosses into foreign
// code.
//
// Borrow provenance cannot be tracked through an uninstrumented
// boundary, so TAM degrades to a coarser contract: each registered
// allocation carries a secret 64-bit tag, a capability proving the
// holder's view of the memory is still current. Revocation rotates the
// tag, so every outstanding capability goes stale at once. There is no
// tree and no permission lattice here - just tag equality.
package tagmap

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/kolkov/borrowsan/internal/borrow/report"
)

// RevokedTag is the sentinel installed by Revoke. Register never
// issues it, so a check against a revoked record can only fail.
const RevokedTag uint64 = 0xDEADBEEF

// Allocation is one registered region.
type Allocation struct {
	// Base is the region's base address and its registry key.
	Base uintptr

	// Size is the registered length in bytes.
	Size int

	// ActiveTag is the currently valid capability, or RevokedTag.
	ActiveTag uint64
}

// TagMap is the process-global tagged-allocation registry.
//
// Unlike the per-goroutine borrow monitor, a TagMap is shared: foreign
// code may touch a region from any thread. Register and Revoke take
// the write lock; Check, the frequent operation, only reads.
type TagMap struct {
	mu     sync.RWMutex
	allocs map[uintptr]Allocation

	// nonce feeds tag derivation so re-registering the same region
	// never reissues an old tag.
	nonce atomic.Uint64

	violations atomic.Int64
	warnings   atomic.Int64

	out io.Writer
}

// New creates an empty registry writing diagnostics to out (nil means
// os.Stderr).
func New(out io.Writer) *TagMap {
	if out == nil {
		out = os.Stderr
	}
	return &TagMap{
		allocs: make(map[uintptr]Allocation),
		out:    out,
	}
}

// deriveTag produces a fresh tag for (base, size) from a keyed-hash
// style derivation: base, size, and a monotonic nonce are hashed so
// tags are unpredictable to code that can only inspect memory
// contents. The sentinel and zero are skipped.
func (t *TagMap) deriveTag(base uintptr, size int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(base))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(size))

	for {
		binary.LittleEndian.PutUint64(buf[16:24], t.nonce.Add(1))
		sum := blake3.Sum256(buf[:])
		tag := binary.LittleEndian.Uint64(sum[0:8])
		if tag != RevokedTag && tag != 0 {
			return tag
		}
	}
}

// Register records the region [base, base+size) and returns its
// capability tag.
//
// Registering a base that is already present replaces the old record
// and rotates its tag, so stale capabilities from the previous
// registration fail their next check.
func (t *TagMap) Register(base uintptr, size int) uint64 {
	tag := t.deriveTag(base, size)

	t.mu.Lock()
	t.allocs[base] = Allocation{Base: base, Size: size, ActiveTag: tag}
	t.mu.Unlock()

	return tag
}

// Check validates the capability presented for base.
//
// A mismatch is fatal: either the region was revoked (active tag is
// the sentinel) or the presented tag is stale. A base that was never
// registered is outside TAM's policy - warn and continue, mirroring
// untracked borrow accesses.
func (t *TagMap) Check(base uintptr, presented uint64) {
	t.mu.RLock()
	alloc, ok := t.allocs[base]
	t.mu.RUnlock()

	if !ok {
		t.warnings.Add(1)
		report.Warn(t.out, "tag check on unregistered memory at 0x%x", base)
		return
	}

	if alloc.ActiveTag == RevokedTag || alloc.ActiveTag != presented {
		t.violations.Add(1)
		report.Raise(t.out, &report.Violation{
			Kind:     report.KindTagMismatch,
			Addr:     base,
			Reason:   "memory was revoked or modified by foreign code",
			Expected: presented,
			Actual:   alloc.ActiveTag,
		})
	}
}

// Revoke rotates base's active tag to the sentinel, invalidating every
// outstanding capability for the region at once.
//
// Revoking twice, or revoking an unregistered base, is a no-op:
// revocation is a one-way latch, not an event that can fail.
func (t *TagMap) Revoke(base uintptr) {
	t.mu.Lock()
	if alloc, ok := t.allocs[base]; ok {
		alloc.ActiveTag = RevokedTag
		t.allocs[base] = alloc
	}
	t.mu.Unlock()
}

// Lookup returns the current record for base.
func (t *TagMap) Lookup(base uintptr) (Allocation, bool) {
	t.mu.RLock()
	alloc, ok := t.allocs[base]
	t.mu.RUnlock()
	return alloc, ok
}

// Len returns the number of registered regions.
func (t *TagMap) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.allocs)
}

// ViolationsDetected returns the number of tag mismatches raised.
func (t *TagMap) ViolationsDetected() int {
	return int(t.violations.Load())
}

// WarningsEmitted returns the number of unregistered-check warnings.
func (t *TagMap) WarningsEmitted() int {
	return int(t.warnings.Load())
}

// Reset drops all records and counters for reuse in test teardown.
// The nonce is deliberately not reset, so tags never repeat across a
// Reset boundary.
func (t *TagMap) Reset() {
	t.mu.Lock()
	t.allocs = make(map[uintptr]Allocation)
	t.mu.Unlock()
	t.violations.Store(0)
	t.warnings.Store(0)
}
