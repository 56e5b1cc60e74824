package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kolkov/borrowsan/internal/borrow/report"
	"github.com/kolkov/borrowsan/internal/borrow/trace"
)

// scenario is one built-in demo script with its expected outcome.
// wantKind is empty for scripts that should run clean.
type scenario struct {
	name     string
	wantKind string
	events   []trace.Event
}

// scenarios mirror the canonical demonstrations of the aliasing model,
// from the strict sibling-revocation case to the tagged-allocation
// foreign-boundary lifecycle.
var scenarios = []scenario{
	{
		name:     "used writer revokes its shared siblings",
		wantKind: report.KindUseAfterRevocation,
		events: []trace.Event{
			{Op: "alloc", Addr: "0x100"},
			{Op: "reborrow", Parent: "0x100", Addr: "0x101", Perm: "shared"},
			{Op: "reborrow", Parent: "0x100", Addr: "0x102", Perm: "shared"},
			{Op: "access", Addr: "0x101"},
			{Op: "access", Addr: "0x102"},
			{Op: "reborrow", Parent: "0x100", Addr: "0x103", Perm: "mutable"},
			{Op: "access", Addr: "0x103"},
			{Op: "access", Addr: "0x101"}, // stale reader
		},
	},
	{
		name: "shared readers coexist indefinitely",
		events: []trace.Event{
			{Op: "alloc", Addr: "0x200"},
			{Op: "reborrow", Parent: "0x200", Addr: "0x201", Perm: "shared"},
			{Op: "reborrow", Parent: "0x200", Addr: "0x202", Perm: "shared"},
			{Op: "access", Addr: "0x201"},
			{Op: "access", Addr: "0x202"},
			{Op: "access", Addr: "0x201"},
		},
	},
	{
		name:     "dormant writer dies when the reader is used first",
		wantKind: report.KindUseAfterRevocation,
		events: []trace.Event{
			{Op: "alloc", Addr: "0x300"},
			{Op: "reborrow", Parent: "0x300", Addr: "0x301", Perm: "shared"},
			{Op: "reborrow", Parent: "0x300", Addr: "0x302", Perm: "mutable"},
			{Op: "access", Addr: "0x301"}, // reader wins
			{Op: "access", Addr: "0x302"}, // revoked writer
		},
	},
	{
		name:     "parent write freezes derived children",
		wantKind: report.KindUseAfterRevocation,
		events: []trace.Event{
			{Op: "alloc", Addr: "0x400"},
			{Op: "reborrow", Parent: "0x400", Addr: "0x401", Perm: "mutable"},
			{Op: "reborrow", Parent: "0x401", Addr: "0x402", Perm: "shared"},
			{Op: "access", Addr: "0x401"},
			{Op: "access", Addr: "0x402"},
		},
	},
	{
		name:     "reborrow from an untracked address",
		wantKind: report.KindUntrackedParent,
		events: []trace.Event{
			{Op: "reborrow", Parent: "0xDEAD", Addr: "0x1", Perm: "shared"},
		},
	},
	{
		name:     "foreign revoke rotates the allocation tag",
		wantKind: report.KindTagMismatch,
		events: []trace.Event{
			{Op: "register", Base: "0x500", Size: 4},
			{Op: "check", Base: "0x500"},
			{Op: "revoke", Base: "0x500"},
			{Op: "check", Base: "0x500"},
		},
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in aliasing scenarios",
	Long: `Run the built-in demonstration scenarios against a fresh monitor and
report whether each behaved as the model predicts.

Scenarios cover sibling revocation, reader coexistence, lazy (first use
wins) enforcement, vertical freezing, untracked derivations, and the
tagged-allocation foreign-code lifecycle.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	// Per-violation diagnostics would drown the scenario summary.
	opts.Quiet = true
	opts.Output = io.Discard

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(out, "Borrowsan demo - session %s\n", uuid.NewString())
	fmt.Fprintf(out, "Mode: %s\n\n", opts.Mode)

	failed := 0
	for _, sc := range scenarios {
		script := &trace.Script{Version: "v1", Events: sc.events}
		result, err := trace.Replay(script, opts)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sc.name, err)
		}

		gotKind := ""
		if result.Violation != nil {
			gotKind = result.Violation.Kind
		}

		switch {
		case gotKind == sc.wantKind && gotKind == "":
			green.Fprintf(out, "✓ %s (no violation)\n", sc.name)
		case gotKind == sc.wantKind:
			green.Fprintf(out, "✓ %s (%s at 0x%x)\n", sc.name, gotKind, result.Violation.Addr)
		default:
			failed++
			red.Fprintf(out, "✗ %s (want %q, got %q)\n", sc.name, sc.wantKind, gotKind)
		}
	}

	fmt.Fprintf(out, "\n%d/%d scenarios behaved as expected\n", len(scenarios)-failed, len(scenarios))
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) diverged from the model", failed)
	}
	return nil
}
