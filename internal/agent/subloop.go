package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paperforge/paperforge/internal/llm"
	"github.com/paperforge/paperforge/internal/providers"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/tools"
)

// subLoop is the bounded ReAct loop shared by the code and writer agents.
type subLoop struct {
	client   *llm.Client
	registry *tools.Registry
	sink     stream.Sink
	system   string
	maxTurns int

	// resultHook may rewrite a tool result before it reaches the LLM,
	// e.g. to attach remediation hints.
	resultHook func(toolName string, res *tools.Result) string
}

// run drives the loop to completion and returns the delivered output:
// the first tool-free assistant turn, or the last tool result at the cap.
func (sl *subLoop) run(ctx context.Context, task string) (string, error) {
	msgs := []providers.Message{
		{Role: "system", Content: sl.system},
		{Role: "user", Content: task},
	}
	defs := sl.registry.ProviderDefs()

	lastToolResult := ""
	for turn := 0; turn < sl.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		assistant, calls, err := sl.client.Stream(ctx, msgs, defs, sl.sink.Token)
		if err != nil {
			return "", fmt.Errorf("agent turn %d: %w", turn+1, err)
		}
		msgs = append(msgs, assistant)

		if len(calls) == 0 {
			return assistant.Content, nil
		}

		for _, tc := range calls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			argsJSON, _ := json.Marshal(tc.Arguments)
			sl.sink.Card("tool_call", map[string]interface{}{
				"name": tc.Name,
				"args": string(argsJSON),
			})

			res := sl.registry.Execute(ctx, tc.Name, tc.Arguments)
			content := res.ForLLM
			if sl.resultHook != nil {
				content = sl.resultHook(tc.Name, res)
			}
			sl.sink.Card("tool_result", map[string]interface{}{
				"name":     tc.Name,
				"result":   content,
				"is_error": res.IsError,
			})

			msgs = append(msgs, providers.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: tc.ID,
			})
			lastToolResult = content
		}
	}

	slog.Warn("sub-agent hit turn cap", "max_turns", sl.maxTurns)
	return lastToolResult, nil
}
