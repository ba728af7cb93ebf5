package compiler

import (
	"context"
	"sync"

	"github.com/openmon/openmon/pkg/objects"
)

// Frame is the evaluation scope of a declaration body. Self is the object
// under construction; Locals carries scope variables injected by the
// declaring rule.
type Frame struct {
	Self   objects.ConfigObject
	Locals map[string]any
}

// Expression is a compiled declaration body. Evaluate populates
// frame.Self, recording breadcrumbs into hints.
type Expression interface {
	Evaluate(ctx context.Context, frame *Frame, hints *DebugHints) error
}

// ExpressionFunc adapts a plain function to the Expression interface.
type ExpressionFunc func(ctx context.Context, frame *Frame, hints *DebugHints) error

// Evaluate implements Expression.
func (f ExpressionFunc) Evaluate(ctx context.Context, frame *Frame, hints *DebugHints) error {
	return f(ctx, frame, hints)
}

// DebugHints accumulates evaluation breadcrumbs: free-form messages plus a
// tree of per-property child hints.
type DebugHints struct {
	mu       sync.Mutex
	messages []any
	children map[string]*DebugHints
}

// AddMessage appends a breadcrumb.
func (h *DebugHints) AddMessage(message any) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

// Child returns the hint node for the named property, creating it on first
// use.
func (h *DebugHints) Child(name string) *DebugHints {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.children == nil {
		h.children = make(map[string]*DebugHints)
	}
	child := h.children[name]
	if child == nil {
		child = &DebugHints{}
		h.children[name] = child
	}
	return child
}

// ToMap renders the hint tree as nested maps for serialization.
func (h *DebugHints) ToMap() map[string]any {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any)
	if len(h.messages) > 0 {
		out["messages"] = append([]any(nil), h.messages...)
	}
	if len(h.children) > 0 {
		props := make(map[string]any, len(h.children))
		for name, child := range h.children {
			props[name] = child.ToMap()
		}
		out["properties"] = props
	}
	return out
}
