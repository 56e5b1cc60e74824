package trace

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/borrowsan/internal/borrow/monitor"
	"github.com/kolkov/borrowsan/internal/borrow/report"
)

func quietOpts() monitor.Options {
	return monitor.Options{Quiet: true, Output: io.Discard}
}

func TestParse_StripsComments(t *testing.T) {
	script, err := Parse([]byte(`{
		// header comment
		"version": "v1",
		"events": [
			{"op": "alloc", "addr": "0x100"}, /* trailing comma below */
		],
	}`))
	require.NoError(t, err)
	assert.Equal(t, "v1", script.Version)
	require.Len(t, script.Events, 1)
	assert.Equal(t, "alloc", script.Events[0].Op)
}

func TestParse_VersionGate(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr string
	}{
		{"bare major", "v1", ""},
		{"full semver", "v1.2.3", ""},
		{"future major", "v2", "unsupported script version"},
		{"not semver", "1.0", "invalid script version"},
		{"empty", "", "invalid script version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(`{"version": "` + tt.version + `", "events": []}`))
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"version": "v1", "events": [}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing trace script")
}

func TestReplay_SiblingRevocation(t *testing.T) {
	script, err := ReadFile(filepath.Join("testdata", "sibling_revocation.jsonc"))
	require.NoError(t, err)

	result, err := Replay(script, quietOpts())
	require.NoError(t, err)
	require.NotNil(t, result.Violation)
	assert.Equal(t, report.KindUseAfterRevocation, result.Violation.Kind)
	assert.Equal(t, uintptr(0x101), result.Violation.Addr)
	assert.Equal(t, 4, result.EventsApplied) // the fifth event violated
}

func TestReplay_CleanRun(t *testing.T) {
	script, err := ReadFile(filepath.Join("testdata", "clean_readers.jsonc"))
	require.NoError(t, err)

	result, err := Replay(script, quietOpts())
	require.NoError(t, err)
	assert.Nil(t, result.Violation)
	assert.Equal(t, len(script.Events), result.EventsApplied)
	assert.Zero(t, result.Warnings)
}

func TestReplay_ForeignRevoke(t *testing.T) {
	script, err := ReadFile(filepath.Join("testdata", "foreign_revoke.jsonc"))
	require.NoError(t, err)

	result, err := Replay(script, quietOpts())
	require.NoError(t, err)
	require.NotNil(t, result.Violation)
	assert.Equal(t, report.KindTagMismatch, result.Violation.Kind)
	assert.Equal(t, uintptr(0x500), result.Violation.Addr)
	// The stale capability is the one captured at register time.
	assert.NotZero(t, result.Violation.Expected)
	assert.EqualValues(t, 0xDEADBEEF, result.Violation.Actual)
}

func TestReplay_UntrackedAccessWarns(t *testing.T) {
	script, err := Parse([]byte(`{
		"version": "v1",
		"events": [{"op": "access", "addr": "0x999"}]
	}`))
	require.NoError(t, err)

	result, err := Replay(script, quietOpts())
	require.NoError(t, err)
	assert.Nil(t, result.Violation)
	assert.Equal(t, 1, result.Warnings)
}

func TestReplay_EagerMode(t *testing.T) {
	// In eager mode the mutable reborrow alone kills the reader; no
	// write access is needed.
	script, err := Parse([]byte(`{
		"version": "v1",
		"events": [
			{"op": "alloc",    "addr": "0x100"},
			{"op": "reborrow", "parent": "0x100", "addr": "0x101", "perm": "shared"},
			{"op": "reborrow", "parent": "0x100", "addr": "0x102", "perm": "mutable"},
			{"op": "access",   "addr": "0x101"}
		]
	}`))
	require.NoError(t, err)

	opts := quietOpts()
	opts.Mode = monitor.ModeEager
	result, err := Replay(script, opts)
	require.NoError(t, err)
	require.NotNil(t, result.Violation)
	assert.Equal(t, report.KindUseAfterRevocation, result.Violation.Kind)

	// The same script is clean under lazy enforcement.
	result, err = Replay(script, quietOpts())
	require.NoError(t, err)
	assert.Nil(t, result.Violation)
}

func TestReplay_MalformedEvents(t *testing.T) {
	tests := []struct {
		name    string
		events  string
		wantErr string
	}{
		{"unknown op", `{"op": "teleport", "addr": "0x1"}`, "unknown op"},
		{"missing addr", `{"op": "alloc"}`, `missing "addr"`},
		{"bad address", `{"op": "alloc", "addr": "xyzzy"}`, `bad "addr" address`},
		{"bad permission", `{"op": "reborrow", "parent": "0x1", "addr": "0x2", "perm": "frozen"}`, "unknown permission"},
		{"bad size", `{"op": "register", "base": "0x500", "size": 0}`, "bad register size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse([]byte(`{"version": "v1", "events": [` + tt.events + `]}`))
			require.NoError(t, err)

			_, err = Replay(script, quietOpts())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join("testdata", "nope.jsonc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}
