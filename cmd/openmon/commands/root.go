package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// buildVersion is reported to the telemetry stack.
	buildVersion string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "openmon",
		Short: "OpenMon - Configuration Compiler and Activation Engine",
		Long: `OpenMon compiles declarative monitoring configuration into live objects.

Features:
  - YAML declaration manifests with Starlark scripting
  - Typed daemon config via CUE
  - Dependency-ordered commit and activation pipeline
  - Derived objects via child expansion (service notifications)
  - Policy admission via OPA/rego
  - SQLite persistence of compiled objects`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "daemon config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newDaemonCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newObjectsCommand())
	rootCmd.AddCommand(newActivationsCommand())
	rootCmd.AddCommand(newEventsCommand())

	return rootCmd
}
