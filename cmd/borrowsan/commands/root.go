package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/borrowsan/internal/borrow/config"
	"github.com/kolkov/borrowsan/internal/borrow/monitor"
)

var (
	version string
	commit  string
	date    string

	// configPath is the global --config flag.
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "borrowsan",
	Short: "Borrowsan - dynamic Aliasing XOR Mutability checker",
	Long: `Borrowsan is a dynamic checker enforcing Aliasing XOR Mutability over
instrumented pointer operations.

Allocations create borrow-tree roots, reborrows create children, and
accesses validate the pointer's derivation chain before enforcing
exclusivity. Conflicting pointers may coexist until one is used - the
first actual use wins.

The CLI drives the runtime without compiler instrumentation: the demo
command runs built-in scenarios, and replay executes JSONC trace
scripts against a fresh monitor.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// loadOptions resolves monitor options from --config, or defaults when
// the flag is unset.
func loadOptions() (monitor.Options, error) {
	if configPath == "" {
		return config.Default().MonitorOptions(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return monitor.Options{}, err
	}
	return cfg.MonitorOptions(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to borrowsan.yml configuration file")
}
