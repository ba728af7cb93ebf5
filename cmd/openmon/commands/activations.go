package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openmon/openmon/pkg/stores"
)

func newActivationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activations",
		Short: "Inspect recorded commit rounds",
		Long: `Inspect the activation records written by the daemon.

Every commit round the daemon runs is recorded with its status, object
count and error, if any.`,
	}

	cmd.AddCommand(newActivationsListCommand())
	cmd.AddCommand(newActivationsGetCommand())

	return cmd
}

func newActivationsListCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded commit rounds",
		Example: `  # Most recent commit rounds first
  openmon activations list --config /etc/openmon/daemon.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.ListActivations(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tOBJECTS\tSTARTED\tERROR")
			for _, row := range rows {
				errMsg := ""
				if row.Error != nil {
					errMsg = *row.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					row.ID, row.Status, row.ObjectCount,
					row.StartedAt.Format("2006-01-02 15:04:05"), errMsg)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides --config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of activations")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}

func newActivationsGetCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one commit round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			row, err := store.GetActivation(cmd.Context(), args[0])
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

func newEventsCommand() *cobra.Command {
	var (
		dbPath       string
		activationID string
		level        string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the daemon event log",
		Long: `Show the append-only event log.

The daemon persists published telemetry events (batch lifecycle, ignored
objects, policy violations) so they can be inspected after the fact.`,
		Example: `  # Errors for one commit round
  openmon events --activation 6f1c… --level error --config /etc/openmon/daemon.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var actFilter *string
			if activationID != "" {
				actFilter = &activationID
			}
			var levelFilter *stores.EventLevel
			if level != "" {
				l := stores.EventLevel(level)
				levelFilter = &l
			}
			rows, err := store.GetEvents(cmd.Context(), actFilter, levelFilter, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tLEVEL\tOBJECT\tMESSAGE")
			for _, row := range rows {
				object := ""
				if row.ObjectType != nil && row.ObjectName != nil {
					object = *row.ObjectType + "/" + *row.ObjectName
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					row.Timestamp.Format("2006-01-02 15:04:05"),
					row.Level, object, row.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides --config)")
	cmd.Flags().StringVar(&activationID, "activation", "", "filter by activation id")
	cmd.Flags().StringVar(&level, "level", "", "filter by level (debug, info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}
