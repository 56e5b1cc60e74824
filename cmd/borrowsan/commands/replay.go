package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kolkov/borrowsan/internal/borrow/trace"
)

var expectViolation bool

var replayCmd = &cobra.Command{
	Use:   "replay <script.jsonc>",
	Short: "Replay a JSONC trace script against a fresh monitor",
	Long: `Replay executes an event script (JSONC: JSON with comments and
trailing commas) against a fresh monitor and tag registry, then reports
the outcome.

By default a clean run succeeds and a violation fails the command. With
--expect-violation the convention flips, so violation regression
scripts can be used directly as test drivers: the command succeeds only
if the script trips the checker.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&expectViolation, "expect-violation", false,
		"Succeed only if the script raises a violation")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	script, err := trace.ReadFile(args[0])
	if err != nil {
		return err
	}

	// Violation diagnostics go to the command's stderr stream.
	opts.Output = cmd.ErrOrStderr()

	result, err := trace.Replay(script, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(out, "Applied %d/%d events", result.EventsApplied, len(script.Events))
	if result.Warnings > 0 {
		fmt.Fprintf(out, " (%d warning(s))", result.Warnings)
	}
	fmt.Fprintf(out, "\n")

	switch {
	case result.Violation == nil && !expectViolation:
		green.Fprintf(out, "✓ clean run\n")
		return nil
	case result.Violation != nil && expectViolation:
		green.Fprintf(out, "✓ violation caught: %s at 0x%x\n",
			result.Violation.Kind, result.Violation.Addr)
		return nil
	case result.Violation != nil:
		red.Fprintf(out, "✗ %s at 0x%x\n", result.Violation.Kind, result.Violation.Addr)
		return fmt.Errorf("script raised %s", result.Violation.Kind)
	default:
		red.Fprintf(out, "✗ expected a violation, none raised\n")
		return fmt.Errorf("script ran clean, violation expected")
	}
}
