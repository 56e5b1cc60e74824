// Package trace parses and replays borrow event scripts.
//
// A script is an ordered event stream in JSONC (JSON extended with
// comments and trailing commas), standing in for live instrumentation:
// what a compiler pass would emit at run time, a script states up
// front. Replaying one drives a fresh monitor and tag registry through
// the exact event sequence, which makes scripts the natural format for
// violation regression cases and for exploring the revocation algebra
// by hand.
//
//	{
//	  "version": "v1",
//	  "events": [
//	    {"op": "alloc",    "addr": "0x100"},
//	    {"op": "reborrow", "parent": "0x100", "addr": "0x101", "perm": "shared"},
//	    {"op": "access",   "addr": "0x101"},  // first use wins
//	  ]
//	}
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"
	"golang.org/x/mod/semver"

	"github.com/kolkov/borrowsan/internal/borrow/monitor"
	"github.com/kolkov/borrowsan/internal/borrow/report"
	"github.com/kolkov/borrowsan/internal/borrow/tagmap"
	"github.com/kolkov/borrowsan/internal/borrow/tree"
)

// Event is one entry in a script's event stream.
//
// Addresses are strings ("0x100") so scripts stay readable; they are
// parsed with base auto-detection, so decimal works too.
type Event struct {
	// Op is one of: alloc, reborrow, access, free (borrow-tree
	// events); register, check, revoke (tagged-allocation events).
	Op string `json:"op"`

	// Addr is the event's subject address (alloc, access, free) or
	// the derived address (reborrow).
	Addr string `json:"addr,omitempty"`

	// Parent is the derivation source address (reborrow only).
	Parent string `json:"parent,omitempty"`

	// Perm is "shared" or "mutable" (reborrow only).
	Perm string `json:"perm,omitempty"`

	// Base is the region base address (register, check, revoke).
	Base string `json:"base,omitempty"`

	// Size is the region length in bytes (register only).
	Size int `json:"size,omitempty"`
}

// Script is a parsed event script.
type Script struct {
	// Version is the schema version, a semver string with major "v1".
	Version string `json:"version"`

	// Events is the ordered event stream.
	Events []Event `json:"events"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the script header.
func Parse(data []byte) (*Script, error) {
	stripped := jsonc.ToJSON(data)

	var script Script
	if err := json.Unmarshal(stripped, &script); err != nil {
		return nil, fmt.Errorf("parsing trace script: %w", err)
	}

	if !semver.IsValid(script.Version) {
		return nil, fmt.Errorf("invalid script version %q", script.Version)
	}
	if major := semver.Major(script.Version); major != "v1" {
		return nil, fmt.Errorf("unsupported script version %s (supported: v1)", script.Version)
	}

	return &script, nil
}

// ReadFile reads a JSONC script from disk and parses it.
func ReadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	script, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return script, nil
}

// parseAddr parses an address field ("0x100", "256").
func parseAddr(field, s string) (uintptr, error) {
	if s == "" {
		return 0, fmt.Errorf("missing %q field", field)
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %q address %q: %w", field, s, err)
	}
	return uintptr(n), nil
}

// ParsePermission maps a script permission string to its tree value.
func ParsePermission(s string) (tree.Permission, error) {
	switch s {
	case "shared":
		return tree.Shared, nil
	case "mutable":
		return tree.Mutable, nil
	default:
		return 0, fmt.Errorf("unknown permission %q (expected: shared or mutable)", s)
	}
}

// Result describes one replay run.
type Result struct {
	// EventsApplied is the number of events applied without a
	// violation. When Violation is set, the offending event is
	// Events[EventsApplied].
	EventsApplied int

	// Violation is the first violation raised, or nil for a clean
	// run. Replay stops at the first violation - in live execution
	// it would have aborted the program.
	Violation *report.Violation

	// Warnings counts untracked-memory diagnostics across the run.
	Warnings int
}

// Replay applies the script's events, in order, to a fresh monitor and
// tag registry.
//
// Tags issued by register events are captured and presented verbatim
// by later check events on the same base, so a script that registers,
// checks, revokes, and checks again exercises exactly the
// foreign-boundary lifecycle: the second check fails with the captured
// (now stale) tag. A malformed event returns an error without a
// Result; policy violations are data, not errors.
func Replay(script *Script, opts monitor.Options) (*Result, error) {
	m := monitor.New(opts)
	tm := tagmap.New(opts.Output)

	// Capability tags by base, as a driver holding the capabilities
	// would remember them.
	heldTags := make(map[uintptr]uint64)

	result := &Result{}
	for i, ev := range script.Events {
		apply, err := compile(ev, m, tm, heldTags)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		if v := report.Trap(apply); v != nil {
			result.Violation = v
			break
		}
		result.EventsApplied++
	}

	result.Warnings = m.WarningsEmitted() + tm.WarningsEmitted()
	return result, nil
}

// compile resolves one event's fields into a closure that applies it.
// Field errors surface here, before anything mutates state.
func compile(ev Event, m *monitor.Monitor, tm *tagmap.TagMap, heldTags map[uintptr]uint64) (func(), error) {
	switch ev.Op {
	case "alloc":
		addr, err := parseAddr("addr", ev.Addr)
		if err != nil {
			return nil, err
		}
		return func() { m.OnAlloc(addr) }, nil

	case "reborrow":
		parent, err := parseAddr("parent", ev.Parent)
		if err != nil {
			return nil, err
		}
		addr, err := parseAddr("addr", ev.Addr)
		if err != nil {
			return nil, err
		}
		perm, err := ParsePermission(ev.Perm)
		if err != nil {
			return nil, err
		}
		return func() { m.OnReborrow(parent, addr, perm) }, nil

	case "access":
		addr, err := parseAddr("addr", ev.Addr)
		if err != nil {
			return nil, err
		}
		return func() { m.OnAccess(addr) }, nil

	case "free":
		addr, err := parseAddr("addr", ev.Addr)
		if err != nil {
			return nil, err
		}
		return func() { m.OnFree(addr) }, nil

	case "register":
		base, err := parseAddr("base", ev.Base)
		if err != nil {
			return nil, err
		}
		if ev.Size <= 0 {
			return nil, fmt.Errorf("bad register size %d", ev.Size)
		}
		return func() { heldTags[base] = tm.Register(base, ev.Size) }, nil

	case "check":
		base, err := parseAddr("base", ev.Base)
		if err != nil {
			return nil, err
		}
		return func() { tm.Check(base, heldTags[base]) }, nil

	case "revoke":
		base, err := parseAddr("base", ev.Base)
		if err != nil {
			return nil, err
		}
		return func() { tm.Revoke(base) }, nil

	default:
		return nil, fmt.Errorf("unknown op %q", ev.Op)
	}
}
