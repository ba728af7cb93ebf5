package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

type manifestHost struct {
	objects.ObjectBase

	Address       string `config:"address,config"`
	CheckCommand  string `config:"check_command,config"`
	CheckInterval int64  `config:"check_interval,config"`
	Uptime        int64  `config:"uptime,state"`
}

func newManifestTypes(t *testing.T) *objects.TypeRegistry {
	t.Helper()
	types := objects.NewTypeRegistry()
	hostType := objects.NewType("Host", func() objects.ConfigObject { return &manifestHost{} })
	if err := types.Register(hostType); err != nil {
		t.Fatalf("registering Host type: %v", err)
	}
	return types
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest %s: %v", name, err)
	}
	return path
}

func evaluateItem(t *testing.T, types *objects.TypeRegistry, item *compiler.Item) (*manifestHost, *compiler.DebugHints) {
	t.Helper()
	obj := types.Lookup("Host").Instantiate().(*manifestHost)
	obj.SetName(item.Name())
	frame := &compiler.Frame{Self: obj, Locals: item.Scope()}
	hints := &compiler.DebugHints{}
	if expr := item.Expression(); expr != nil {
		if err := expr.Evaluate(context.Background(), frame, hints); err != nil {
			t.Fatalf("evaluating %s %q: %v", item.Type().Name(), item.Name(), err)
		}
	}
	return obj, hints
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b-hosts.yaml", `
objects:
  - type: Host
    name: web02
    properties:
      address: 192.0.2.2
`)
	writeManifest(t, dir, "a-hosts.yml", `
objects:
  - type: Host
    name: web01
    properties:
      address: 192.0.2.1
`)
	writeManifest(t, dir, "notes.txt", "not a manifest\n")

	types := newManifestTypes(t)
	loader := NewLoader(types, nil)
	items, err := loader.LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Name() != "web01" || items[1].Name() != "web02" {
		t.Errorf("item order = %q, %q", items[0].Name(), items[1].Name())
	}
	for _, item := range items {
		di := item.DebugInfo()
		if di.Path == "" || di.FirstLine < 1 {
			t.Errorf("item %q missing debug info: %+v", item.Name(), di)
		}
	}
}

func TestLoadFileProperties(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "hosts.yaml", `
objects:
  - type: Host
    name: web01
    properties:
      address: 192.0.2.1
      check_interval: 60
`)

	types := newManifestTypes(t)
	loader := NewLoader(types, nil)
	items, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	obj, hints := evaluateItem(t, types, items[0])
	if obj.Address != "192.0.2.1" {
		t.Errorf("Address = %q", obj.Address)
	}
	if obj.CheckInterval != 60 {
		t.Errorf("CheckInterval = %d", obj.CheckInterval)
	}
	props, _ := hints.ToMap()["properties"].(map[string]any)
	if _, ok := props["address"]; !ok {
		t.Errorf("no breadcrumb for address: %v", hints.ToMap())
	}
}

func TestLoadFileScript(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "hosts.yaml", `
objects:
  - type: Host
    name: web01
    properties:
      address: 192.0.2.1
    script: |
      this.check_command = "ping4"
      this.check_interval = 2 * this.check_interval if this.check_interval else 30
`)

	types := newManifestTypes(t)
	loader := NewLoader(types, nil)
	items, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	obj, _ := evaluateItem(t, types, items[0])
	if obj.Address != "192.0.2.1" {
		t.Errorf("Address = %q", obj.Address)
	}
	if obj.CheckCommand != "ping4" {
		t.Errorf("CheckCommand = %q", obj.CheckCommand)
	}
	if obj.CheckInterval != 30 {
		t.Errorf("CheckInterval = %d", obj.CheckInterval)
	}
}

func TestLoadFileFlags(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "templates.yaml", `
objects:
  - type: Host
    name: generic-host
    template: true
    ignore_on_error: true
    zone: satellite
    properties:
      check_interval: 300
`)

	types := newManifestTypes(t)
	loader := NewLoader(types, nil)
	items, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	item := items[0]
	if !item.IsAbstract() {
		t.Error("IsAbstract() = false")
	}
	if !item.IgnoreOnError() {
		t.Error("IgnoreOnError() = false")
	}
	if item.Zone() != "satellite" {
		t.Errorf("Zone() = %q", item.Zone())
	}
	if item.Package() != "_etc" {
		t.Errorf("Package() = %q", item.Package())
	}
}

func TestLoadFileInvalidDeclaration(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "lowercase type",
			content: `
objects:
  - type: host
    name: web01
`,
		},
		{
			name: "missing type",
			content: `
objects:
  - name: web01
`,
		},
		{
			name:    "malformed yaml",
			content: "objects: [\n",
		},
		{
			name: "unknown type",
			content: `
objects:
  - type: Widget
    name: web01
`,
		},
	}

	types := newManifestTypes(t)
	loader := NewLoader(types, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, dir, "bad-"+tt.name+".yaml", tt.content)
			if _, err := loader.LoadFile(context.Background(), path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
