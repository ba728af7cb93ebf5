package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/config"
	"github.com/openmon/openmon/pkg/monitoring"
	"github.com/openmon/openmon/pkg/objects"
	"github.com/openmon/openmon/pkg/policy"
	"github.com/openmon/openmon/pkg/telemetry"
	"github.com/openmon/openmon/pkg/workqueue"
)

func newValidateCommand() *cobra.Command {
	var policyPaths []string

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate declaration manifests",
		Long: `Validate declaration manifests without touching any live state.

The manifests are loaded and driven through a full dry-run commit: YAML
syntax, declaration schema conformance, field validation, name composition
and cross-references are all checked. Nothing is activated or persisted.`,
		Example: `  # Validate manifests in the current directory
  openmon validate

  # Validate a specific directory against admission policies
  openmon validate --policy ./policies /etc/openmon/conf.d`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runValidate(cmd.Context(), dir, policyPaths)
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "rego policy file or directory (repeatable)")

	return cmd
}

func runValidate(ctx context.Context, dir string, policyPaths []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  level,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return err
	}

	types := objects.NewTypeRegistry()
	if err := monitoring.RegisterTypes(types); err != nil {
		return err
	}

	loader := config.NewLoader(types, nil)
	items, err := loader.LoadDirectory(ctx, dir)
	if err != nil {
		return err
	}

	var admission compiler.Admission
	if len(policyPaths) > 0 {
		engine, err := policy.NewEngine(logger.Zerolog())
		if err != nil {
			return err
		}
		if err := engine.LoadPolicies(ctx, policyPaths); err != nil {
			return err
		}
		admission = policy.NewAdmission(engine, policy.ModeEnforcing, logger.Zerolog())
	}

	registry := compiler.NewItemRegistry()
	comp := compiler.New(compiler.Options{
		Registry:        registry,
		Types:           types,
		Admission:       admission,
		Logger:          logger,
		DependencyGraph: objects.NewDependencyGraph(),
	})

	scoped, actx := compiler.NewActivationScope(ctx)
	for _, item := range items {
		if err := registry.Register(scoped, item); err != nil {
			return err
		}
	}

	wq := workqueue.New("validate", 0, 0)
	defer wq.Close()

	var newItems []*compiler.Item
	if err := comp.CommitItems(scoped, actx, wq, &newItems, true); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"valid":   true,
			"objects": len(newItems),
			"ignored": len(registry.IgnoredPaths()),
		})
	}
	fmt.Printf("Configuration OK: %d objects", len(newItems))
	if ignored := len(registry.IgnoredPaths()); ignored > 0 {
		fmt.Printf(", %d declarations dropped by ignore_on_error", ignored)
	}
	fmt.Println()
	return nil
}
