// Package tools holds the planner-facing tool catalog. Every tool returns
// a human-readable string; failures are stringified so the LLM can react
// to them, never raised to the caller.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paperforge/paperforge/internal/providers"
)

// Tool is one callable unit exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// Registry is an ordered tool collection bound to one agent run.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces it in place.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Execute runs one tool call and stringifies every failure path.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	t, ok := r.tools[name]
	if !ok {
		return ErrorResult(fmt.Sprintf("未知工具: %s，可用工具: %v", name, r.order))
	}

	ctx, span := otel.Tracer("paperforge/tools").Start(ctx, "tool.exec")
	defer span.End()
	span.SetAttributes(attribute.String("tool", name))

	res := t.Execute(ctx, args)
	if res == nil {
		res = ErrorResult(fmt.Sprintf("工具 %s 未返回结果", name))
	}
	if res.IsError {
		slog.Warn("tool returned error", "tool", name, "result", res.ForLLM)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return res
}

// ProviderDefs converts the catalog to provider tool definitions, in
// registration order.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// FuncTool wraps a plain function as a Tool. Sub-agent dispatchers use it
// so the agent package can register tools without an import cycle.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  map[string]interface{}
	Fn              func(ctx context.Context, args map[string]interface{}) *Result
}

func (t *FuncTool) Name() string                       { return t.ToolName }
func (t *FuncTool) Description() string                { return t.ToolDescription }
func (t *FuncTool) Parameters() map[string]interface{} { return t.ToolParameters }
func (t *FuncTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.Fn(ctx, args)
}
