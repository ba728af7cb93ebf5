package config

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

// Loader turns declaration manifests into configuration items ready for
// registration. Manifests are YAML files with an `objects` list; each entry
// is validated against the declaration schema before an item is built.
type Loader struct {
	types     *objects.TypeRegistry
	evaluator *StarlarkEvaluator
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a manifest loader resolving types against types.
func NewLoader(types *objects.TypeRegistry, evaluator *StarlarkEvaluator) *Loader {
	if evaluator == nil {
		evaluator = NewStarlarkEvaluator(0)
	}
	return &Loader{
		types:     types,
		evaluator: evaluator,
		schemas:   NewSchemaRegistry(),
		validator: validator.New(),
	}
}

// LoadDirectory loads every manifest under dir, sorted by path so that
// commits see a stable declaration order.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]*compiler.Item, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking config directory %s: %w", dir, err)
	}
	sort.Strings(paths)

	var items []*compiler.Item
	for _, path := range paths {
		fileItems, err := l.LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		items = append(items, fileItems...)
	}
	return items, nil
}

// LoadFile loads the declaration manifest at path.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]*compiler.Item, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	manifest, err := l.ParseManifest(ctx, path, content)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Objects []yaml.Node `yaml:"objects"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	items := make([]*compiler.Item, 0, len(manifest.Objects))
	for i, decl := range manifest.Objects {
		di := objects.DebugInfo{Path: path, FirstLine: 1, FirstColumn: 1, LastLine: 1, LastColumn: 1}
		if i < len(doc.Objects) {
			node := &doc.Objects[i]
			di.FirstLine = node.Line
			di.FirstColumn = node.Column
			di.LastLine = nodeLastLine(node)
			di.LastColumn = node.Column
		}

		item, err := l.buildItem(decl, path, di)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseManifest decodes and validates a manifest without building items.
func (l *Loader) ParseManifest(ctx context.Context, path string, content []byte) (*ManifestFile, error) {
	var manifest ManifestFile
	if err := yaml.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	manifest.Path = path

	for i, decl := range manifest.Objects {
		if err := l.validator.Struct(decl); err != nil {
			return nil, fmt.Errorf("manifest %s object %d invalid: %w", path, i, err)
		}
		if err := l.schemas.ValidateDeclaration(ctx, decl); err != nil {
			return nil, fmt.Errorf("manifest %s object %d (%s %q): %w", path, i, decl.Type, decl.Name, err)
		}
	}
	return &manifest, nil
}

// buildItem compiles one declaration document into an item.
func (l *Loader) buildItem(decl DeclarationDoc, path string, di objects.DebugInfo) (*compiler.Item, error) {
	var exprs []compiler.Expression
	if len(decl.Properties) > 0 {
		exprs = append(exprs, PropertiesExpression(decl.Properties))
	}
	if decl.Script != "" {
		exprs = append(exprs, l.evaluator.ScriptExpression(decl.Script, path))
	}

	item, err := compiler.NewItemBuilder(l.types).
		SetType(decl.Type).
		SetName(decl.Name).
		SetAbstract(decl.Template).
		SetDefaultTemplate(decl.DefaultTemplate).
		SetIgnoreOnError(decl.IgnoreOnError).
		SetZone(decl.Zone).
		SetPackage("_etc").
		SetExpression(chainExpressions(exprs)).
		SetDebugInfo(di).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return item, nil
}

// chainExpressions evaluates the given expressions in order.
func chainExpressions(exprs []compiler.Expression) compiler.Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	}
	return compiler.ExpressionFunc(func(ctx context.Context, frame *compiler.Frame, hints *compiler.DebugHints) error {
		for _, expr := range exprs {
			if err := expr.Evaluate(ctx, frame, hints); err != nil {
				return err
			}
		}
		return nil
	})
}

// nodeLastLine returns the highest line number reachable from node.
func nodeLastLine(node *yaml.Node) int {
	last := node.Line
	for _, child := range node.Content {
		if l := nodeLastLine(child); l > last {
			last = l
		}
	}
	return last
}
