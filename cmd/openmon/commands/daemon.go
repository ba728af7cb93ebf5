package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/config"
	"github.com/openmon/openmon/pkg/monitoring"
	"github.com/openmon/openmon/pkg/objects"
	"github.com/openmon/openmon/pkg/policy"
	"github.com/openmon/openmon/pkg/stores"
	"github.com/openmon/openmon/pkg/telemetry"
	"github.com/openmon/openmon/pkg/workqueue"
)

const reloadDebounce = 500 * time.Millisecond

func newDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the openmon daemon",
		Long: `Run the openmon daemon.

The daemon loads the declaration manifests from the configured directory,
commits and activates the resulting objects, persists them to the sqlite
store and then watches the directory: any manifest change triggers a full
re-commit under a fresh activation context. Every commit round is recorded
as an activation row, and published telemetry events land in the store's
event log.`,
		Example: `  # Run with a CUE daemon config
  openmon daemon --config /etc/openmon/daemon.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.LoadDaemonConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading daemon config: %w", err)
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
	return cmd
}

// daemon bundles the long-lived collaborators. The compiler and its item
// registry are rebuilt for every commit round; everything else survives
// reloads.
type daemon struct {
	cfg       *config.DaemonConfig
	types     *objects.TypeRegistry
	loader    *config.Loader
	store     *stores.SQLiteStore
	admission compiler.Admission
	tel       *telemetry.Telemetry
	modAttrs  compiler.ModAttrsFunc
}

func runDaemon(ctx context.Context, cfg *config.DaemonConfig) error {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry.ToTelemetry(buildVersion))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	ctx = tel.WithContext(ctx)
	defer tel.Shutdown(context.Background())

	if err := tel.StartMetricsServer(); err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.DatabasePath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	tel.Events.Subscribe(persistEvents(store), nil)

	types := objects.NewTypeRegistry()
	if err := monitoring.RegisterTypes(types); err != nil {
		return fmt.Errorf("registering object types: %w", err)
	}

	var admission compiler.Admission
	if cfg.Policy.Enabled {
		engine, err := policy.NewEngine(tel.Logger.Zerolog())
		if err != nil {
			return fmt.Errorf("creating policy engine: %w", err)
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := engine.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return fmt.Errorf("loading policies: %w", err)
			}
		}
		admission = policy.NewAdmission(engine, cfg.Policy.Mode, tel.Logger.Zerolog())
	}

	evaluator := config.NewStarlarkEvaluator(cfg.StarlarkTimeout())

	d := &daemon{
		cfg:       cfg,
		types:     types,
		loader:    config.NewLoader(types, evaluator),
		store:     store,
		admission: admission,
		tel:       tel,
	}
	if cfg.ModAttrsPath != "" {
		d.modAttrs = evaluator.ModAttrsFunc(cfg.ModAttrsPath, types)
	}

	if err := d.commitAll(ctx); err != nil {
		return err
	}

	watcher, err := d.watchConfDir()
	if err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}
	defer watcher.Close()

	tel.Logger.NewComponentLogger("daemon").
		WithField("conf_dir", cfg.ConfDir).
		Info("Configuration committed, watching for changes.")

	d.watchLoop(ctx, watcher)
	return nil
}

// persistEvents appends published telemetry events to the store's event
// log. Append failures are dropped; the log is best-effort diagnostics.
func persistEvents(store *stores.SQLiteStore) telemetry.EventSubscriber {
	return func(ev telemetry.Event) {
		row := &stores.Event{
			Level:     stores.EventLevel(ev.Level),
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}
		if ev.BatchID != "" {
			row.ActivationID = &ev.BatchID
		}
		if ev.ObjectType != "" {
			row.ObjectType = &ev.ObjectType
		}
		if ev.ObjectName != "" {
			row.ObjectName = &ev.ObjectName
		}
		if len(ev.Data) > 0 {
			if details, err := json.Marshal(ev.Data); err == nil {
				s := string(details)
				row.Details = &s
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.AppendEvent(ctx, row)
	}
}

// commitAll loads every manifest and runs a full commit and activation
// round with a fresh item registry. The round is recorded as an activation
// row and wrapped in batch telemetry.
func (d *daemon) commitAll(ctx context.Context) error {
	items, err := d.loader.LoadDirectory(ctx, d.cfg.ConfDir)
	if err != nil {
		return fmt.Errorf("loading manifests: %w", err)
	}

	act := &stores.Activation{
		ID:        uuid.New().String(),
		Status:    stores.ActivationStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := d.store.CreateActivation(ctx, act); err != nil {
		return fmt.Errorf("recording activation: %w", err)
	}

	bctx := telemetry.WithBatchContext(ctx, act.ID, len(items))
	committed, err := d.commitRound(bctx, items)
	telemetry.EndBatchContext(bctx, act.ID, committed, err)

	if err != nil {
		msg := err.Error()
		if uerr := d.store.UpdateActivationStatus(ctx, act.ID, stores.ActivationStatusFailed, committed, &msg); uerr != nil {
			d.tel.Logger.NewComponentLogger("daemon").
				WithError(uerr).
				Warn("Recording failed activation status failed.")
		}
		return err
	}
	return d.store.UpdateActivationStatus(ctx, act.ID, stores.ActivationStatusCompleted, committed, nil)
}

// commitRound builds a fresh compiler over the loaded items and drives it
// through commit and activation. Returns the committed object count.
func (d *daemon) commitRound(ctx context.Context, items []*compiler.Item) (int, error) {
	registry := compiler.NewItemRegistry()
	comp := compiler.New(compiler.Options{
		Registry:        registry,
		Types:           d.types,
		Sink:            stores.NewObjectSink(d.store),
		Admission:       d.admission,
		Logger:          d.tel.Logger,
		Metrics:         d.tel.Metrics,
		DependencyGraph: objects.NewDependencyGraph(),
		ModAttrs:        d.modAttrs,
	})

	scoped, actx := compiler.NewActivationScope(ctx)
	for _, item := range items {
		if err := registry.Register(scoped, item); err != nil {
			return 0, err
		}
	}

	wq := workqueue.New("daemon-commit", 0, d.cfg.Concurrency)
	defer wq.Close()

	var newItems []*compiler.Item
	if err := comp.CommitItems(scoped, actx, wq, &newItems, false); err != nil {
		return 0, err
	}
	if err := comp.ActivateItems(scoped, wq, newItems, false, false, true); err != nil {
		return len(newItems), err
	}
	registry.RemoveIgnoredItems(d.cfg.ConfDir)
	return len(newItems), nil
}

// teardown deactivates and unregisters every live object ahead of a
// re-commit.
func (d *daemon) teardown(ctx context.Context) {
	for _, t := range d.types.All() {
		for _, obj := range t.Instances() {
			if err := obj.Deactivate(ctx, false); err != nil {
				d.tel.Logger.NewComponentLogger("daemon").
					WithObject(t.Name(), obj.Name()).
					WithError(err).
					Warn("Deactivate failed during reload.")
			}
			obj.Unregister()
		}
	}
}

// watchConfDir registers the config directory and its subdirectories with
// an fsnotify watcher.
func (d *daemon) watchConfDir() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(d.cfg.ConfDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// watchLoop re-commits the configuration whenever manifests change,
// debouncing bursts of events. A failed reload leaves the daemon running so
// the operator can fix the manifests and save again.
func (d *daemon) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	log := d.tel.Logger.NewComponentLogger("daemon")

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			d.teardown(context.Background())
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.WithField("file", event.Name).Debug("Config change detected.")
			reload = time.After(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("Config watcher error.")

		case <-reload:
			reload = nil
			log.Info("Reloading configuration.")
			d.teardown(ctx)
			if err := d.commitAll(ctx); err != nil {
				d.tel.Metrics.IncReloads("failed")
				log.WithError(err).Error("Configuration reload failed, daemon keeps running.")
				continue
			}
			d.tel.Metrics.IncReloads("succeeded")
			log.Info("Configuration reloaded.")
		}
	}
}
