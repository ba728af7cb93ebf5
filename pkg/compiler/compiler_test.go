package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/openmon/openmon/pkg/objects"
	"github.com/openmon/openmon/pkg/telemetry"
	"github.com/openmon/openmon/pkg/workqueue"
)

type testHost struct {
	objects.ObjectBase

	Address  string   `config:"address,config" validate:"required"`
	Services []string `config:"services,config"`
	Uptime   int      `config:"uptime,state"`
}

func (h *testHost) CreateChildObjects(ctx context.Context, childType *objects.Type) error {
	if childType.Name() != "Service" {
		return nil
	}
	c := FromContext(ctx)
	for _, name := range h.Services {
		item, err := NewItemBuilder(c.Types()).
			SetType("Service").
			SetName(name).
			SetExpression(setFieldExpr(map[string]any{"host": h.Name()})).
			Compile()
		if err != nil {
			return err
		}
		if err := c.Registry().Register(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

type testService struct {
	objects.ObjectBase

	Host   string `config:"host,config"`
	Checks int    `config:"checks,state"`
}

func (s *testService) OnAllConfigLoaded(ctx context.Context) error {
	c := FromContext(ctx)
	host := c.Types().Lookup("Host").Instance(s.Host)
	if host == nil {
		return fmt.Errorf("service %q references unknown host %q", s.Name(), s.Host)
	}
	c.DependencyGraph().AddDependency(s, host)
	return nil
}

type testFlaky struct {
	objects.ObjectBase

	Address         string `config:"address,config"`
	FailPreActivate bool   `config:"fail_pre_activate,config"`
	FailActivate    bool   `config:"fail_activate,config"`
}

func (f *testFlaky) PreActivate(ctx context.Context) error {
	if f.FailPreActivate {
		return errors.New("pre-activate refused")
	}
	return nil
}

func (f *testFlaky) Activate(ctx context.Context, runtimeCreated bool) error {
	if f.FailActivate {
		return errors.New("activate refused")
	}
	return f.ObjectBase.Activate(ctx, runtimeCreated)
}

type serviceComposer struct{}

func (serviceComposer) MakeName(shortName string, props map[string]any) (string, error) {
	host, _ := props["host"].(string)
	if host == "" {
		return "", fmt.Errorf("service %q has no host", shortName)
	}
	if shortName == "" {
		return "", fmt.Errorf("service on host %q has no name", host)
	}
	return host + "!" + shortName, nil
}

func (serviceComposer) ParseName(name string) (map[string]any, error) {
	host, short, ok := strings.Cut(name, "!")
	if !ok {
		return nil, fmt.Errorf("invalid service name %q", name)
	}
	return map[string]any{"host": host, "name": short}, nil
}

func setFieldExpr(fields map[string]any) Expression {
	return ExpressionFunc(func(ctx context.Context, frame *Frame, hints *DebugHints) error {
		for name, value := range fields {
			if err := frame.Self.SetField(name, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func failExpr(msg string) Expression {
	return ExpressionFunc(func(context.Context, *Frame, *DebugHints) error {
		return errors.New(msg)
	})
}

type memorySink struct {
	mu      sync.Mutex
	records []*ObjectRecord
	err     error
}

func (s *memorySink) WriteObject(ctx context.Context, rec *ObjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Records() []*ObjectRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ObjectRecord(nil), s.records...)
}

type admissionFunc func(ctx context.Context, typeName, objectName string, props map[string]any) error

func (f admissionFunc) Check(ctx context.Context, typeName, objectName string, props map[string]any) error {
	return f(ctx, typeName, objectName, props)
}

type testEnv struct {
	types    *objects.TypeRegistry
	registry *ItemRegistry
	sink     *memorySink
	depGraph *objects.DependencyGraph
	compiler *Compiler
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	types := objects.NewTypeRegistry()
	hostType := objects.NewType("Host", func() objects.ConfigObject { return &testHost{} })
	svcType := objects.NewType("Service", func() objects.ConfigObject { return &testService{} },
		objects.WithComposer(serviceComposer{}),
		objects.WithLoadDependencies("Host"))
	flakyType := objects.NewType("Flaky", func() objects.ConfigObject { return &testFlaky{} },
		objects.WithPluralName("Flakies"))
	for _, typ := range []*objects.Type{hostType, svcType, flakyType} {
		if err := types.Register(typ); err != nil {
			t.Fatalf("registering type %s: %v", typ.Name(), err)
		}
	}

	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	env := &testEnv{
		types:    types,
		registry: NewItemRegistry(),
		sink:     &memorySink{},
		depGraph: objects.NewDependencyGraph(),
	}

	options := Options{
		Registry:        env.registry,
		Types:           env.types,
		Sink:            env.sink,
		Logger:          logger,
		DependencyGraph: env.depGraph,
	}
	for _, opt := range opts {
		opt(&options)
	}
	env.compiler = New(options)
	return env
}

func (e *testEnv) item(t *testing.T, typeName, name string, expr Expression) *Item {
	t.Helper()
	item, err := NewItemBuilder(e.types).
		SetType(typeName).
		SetName(name).
		SetExpression(expr).
		SetDebugInfo(objects.DebugInfo{
			Path:        "/etc/openmon/conf.d/" + strings.ToLower(typeName) + "s.conf",
			FirstLine:   1,
			FirstColumn: 1,
			LastLine:    4,
			LastColumn:  1,
		}).
		Compile()
	if err != nil {
		t.Fatalf("compiling %s %q: %v", typeName, name, err)
	}
	return item
}

func (e *testEnv) commit(t *testing.T, items ...*Item) ([]*Item, error) {
	t.Helper()

	ctx, actx := NewActivationScope(context.Background())
	for _, item := range items {
		if err := e.registry.Register(ctx, item); err != nil {
			return nil, err
		}
	}

	wq := workqueue.New("commit-test", 0, 2)
	defer wq.Close()

	var newItems []*Item
	err := e.compiler.CommitItems(ctx, actx, wq, &newItems, true)
	return newItems, err
}

func (e *testEnv) commitAndActivate(t *testing.T, items ...*Item) []*Item {
	t.Helper()

	ctx, actx := NewActivationScope(context.Background())
	for _, item := range items {
		if err := e.registry.Register(ctx, item); err != nil {
			t.Fatalf("registering item %q: %v", item.Name(), err)
		}
	}

	wq := workqueue.New("commit-test", 0, 2)
	defer wq.Close()

	var newItems []*Item
	if err := e.compiler.CommitItems(ctx, actx, wq, &newItems, true); err != nil {
		t.Fatalf("CommitItems: %v", err)
	}
	if err := e.compiler.ActivateItems(ctx, wq, newItems, false, true, false); err != nil {
		t.Fatalf("ActivateItems: %v", err)
	}
	return newItems
}

func TestRunWithActivationContext(t *testing.T) {
	env := newTestEnv(t)

	err := env.compiler.RunWithActivationContext(context.Background(), func(ctx context.Context) error {
		item, err := NewItemBuilder(env.types).
			SetType("Host").
			SetName("runtime01").
			SetExpression(setFieldExpr(map[string]any{"address": "198.51.100.1"})).
			Compile()
		if err != nil {
			return err
		}
		return env.registry.Register(ctx, item)
	})
	if err != nil {
		t.Fatalf("RunWithActivationContext: %v", err)
	}

	host := env.types.Lookup("Host").Instance("runtime01")
	if host == nil {
		t.Fatal("expected runtime-created host to be registered")
	}
	if !host.IsActive() {
		t.Error("expected runtime-created host to be active")
	}
}

func TestRunWithActivationContextPropagatesError(t *testing.T) {
	env := newTestEnv(t)

	wantErr := errors.New("setup failed")
	err := env.compiler.RunWithActivationContext(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the callback error, got %v", err)
	}
}

func TestTypesInLoadOrder(t *testing.T) {
	env := newTestEnv(t)

	order := env.compiler.typesInLoadOrder()
	pos := make(map[string]int, len(order))
	for i, typ := range order {
		pos[typ.Name()] = i
	}

	if pos["Host"] > pos["Service"] {
		t.Errorf("expected Host before Service, got order %v", pos)
	}
	if len(order) != 3 {
		t.Errorf("expected 3 types in load order, got %d", len(order))
	}
}

func TestCommitSkipsForeignBatches(t *testing.T) {
	env := newTestEnv(t)

	// Register an item under one activation context, then commit a different
	// one. The item must stay pending.
	foreignCtx, _ := NewActivationScope(context.Background())
	item := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	if err := env.registry.Register(foreignCtx, item); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, actx := NewActivationScope(context.Background())
	wq := workqueue.New("commit-test", 0, 2)
	defer wq.Close()

	var newItems []*Item
	if err := env.compiler.CommitItems(context.Background(), actx, wq, &newItems, true); err != nil {
		t.Fatalf("CommitItems: %v", err)
	}
	if len(newItems) != 0 {
		t.Fatalf("expected no items committed for a foreign batch, got %d", len(newItems))
	}
	if item.Object() != nil {
		t.Error("expected foreign item to stay uncommitted")
	}
}

var loopNameCounter atomic.Int64

type testLoop struct {
	objects.ObjectBase
}

func (l *testLoop) CreateChildObjects(ctx context.Context, childType *objects.Type) error {
	if childType.Name() != "Loop" {
		return nil
	}
	c := FromContext(ctx)
	item, err := NewItemBuilder(c.Types()).
		SetType("Loop").
		SetName(fmt.Sprintf("loop-%d", loopNameCounter.Add(1))).
		Compile()
	if err != nil {
		return err
	}
	return c.Registry().Register(ctx, item)
}
