package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openmon/openmon/pkg/config"
	"github.com/openmon/openmon/pkg/stores"
)

func newObjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect persisted config objects",
		Long: `Inspect the compiled object snapshots persisted by the daemon.

The database path is taken from the daemon config (--config) or given
directly with --db.`,
	}

	cmd.AddCommand(newObjectsListCommand())
	cmd.AddCommand(newObjectsGetCommand())

	return cmd
}

func newObjectsListCommand() *cobra.Command {
	var (
		dbPath     string
		typeFilter string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted objects",
		Example: `  # List every object
  openmon objects list --db /var/lib/openmon/openmon.db

  # List hosts only
  openmon objects list --config /etc/openmon/daemon.cue --type Host`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var filter *string
			if typeFilter != "" {
				filter = &typeFilter
			}
			rows, err := store.ListObjects(cmd.Context(), filter, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tSOURCE\tUPDATED")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\n",
					row.ObjectType, row.ObjectName,
					row.SourcePath, row.FirstLine,
					row.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides --config)")
	cmd.Flags().StringVar(&typeFilter, "type", "", "filter by object type")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of objects")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}

func newObjectsGetCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "get <type> <name>",
		Short: "Show one persisted object",
		Example: `  # Show a composed service object
  openmon objects get Service 'web01!http' --db /var/lib/openmon/openmon.db`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			row, err := store.GetObject(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(row)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides --config)")

	return cmd
}

// openStore resolves the database path from --db or the daemon config and
// opens the sqlite store.
func openStore(ctx context.Context, dbPath string) (*stores.SQLiteStore, error) {
	if dbPath == "" {
		if configPath == "" {
			return nil, fmt.Errorf("either --db or --config is required")
		}
		cfg, err := config.LoadDaemonConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading daemon config: %w", err)
		}
		dbPath = cfg.DatabasePath
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	return store, nil
}
