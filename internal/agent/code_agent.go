package agent

import (
	"context"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/llm"
	"github.com/paperforge/paperforge/internal/sandbox"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/tools"
	"github.com/paperforge/paperforge/internal/workspace"
)

// CodeAgent runs the sandbox ReAct loop for one natural-language task.
type CodeAgent struct {
	loop *subLoop
}

// NewCodeAgent resolves the user's code-role model and binds the sandbox
// tool set. Cards and tokens flow through a "code_agent" sub-sink.
func NewCodeAgent(st *store.Store, cfg *config.Config, ws *workspace.Workspace, userID string, parent *stream.PersistentSink) (*CodeAgent, error) {
	client, err := llm.ForRole(st, cfg.Agents, userID, store.RoleCode)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	tools.RegisterSandboxTools(registry, sandbox.New(ws, cfg.Sandbox))

	maxTurns := cfg.Agents.MaxCodeIterations
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &CodeAgent{
		loop: &subLoop{
			client:   client,
			registry: registry,
			sink:     stream.NewSubSink(parent, "code_agent"),
			system:   codeAgentPrompt,
			maxTurns: maxTurns,
		},
	}, nil
}

// Run executes the task to completion and returns the final output.
func (a *CodeAgent) Run(ctx context.Context, task string) (string, error) {
	a.loop.sink.Card("start", map[string]interface{}{"task": task})
	out, err := a.loop.run(ctx, task)
	if err != nil {
		a.loop.sink.Card("error", map[string]interface{}{"error": err.Error()})
		a.loop.sink.Finalize()
		return "", err
	}
	a.loop.sink.Finalize()
	return out, nil
}
