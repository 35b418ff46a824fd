package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paperforge/paperforge/internal/chatlog"
	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/contextmgr"
	"github.com/paperforge/paperforge/internal/llm"
	"github.com/paperforge/paperforge/internal/providers"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/tools"
	"github.com/paperforge/paperforge/internal/workspace"
)

// Planner is the top-level loop that turns a user question into tool
// calls and a final assistant message.
type Planner struct {
	cfg  *config.Config
	st   *store.Store
	work *store.Work
	ws   *workspace.Workspace
	log  *chatlog.Log
	sink *stream.PersistentSink

	brain    *llm.Client
	registry *tools.Registry
	cm       *contextmgr.Manager

	// code and writer agents both touch paper.md/paper.docx, so their
	// invocations within one turn are serialized
	subAgentMu sync.Mutex
	hasWriter  bool
}

// NewPlanner builds the planner for one task run. templateFile, when
// non-empty, is copied into the workspace as paper.md on first use.
func NewPlanner(st *store.Store, cfg *config.Config, work *store.Work, ws *workspace.Workspace, log *chatlog.Log, sink *stream.PersistentSink, templateFile string) (*Planner, error) {
	brain, err := llm.ForRole(st, cfg.Agents, work.UserID, store.RoleBrain)
	if err != nil {
		return nil, err
	}

	hasTemplate := work.TemplateID != ""
	if hasTemplate && templateFile != "" {
		if err := seedTemplate(ws, templateFile); err != nil {
			return nil, err
		}
	}

	p := &Planner{
		cfg:       cfg,
		st:        st,
		work:      work,
		ws:        ws,
		log:       log,
		sink:      sink,
		brain:     brain,
		cm:        contextmgr.New(cfg.Context.MaxTokens, cfg.Context.MaxMessages),
		hasWriter: st.HasModelConfig(work.UserID, store.RoleWriting),
	}

	registry := tools.NewRegistry()
	registry.Register(&tools.FuncTool{
		ToolName:        "code_agent",
		ToolDescription: "将数据分析、计算或绘图任务委托给代码执行代理。",
		ToolParameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"task_prompt": map[string]interface{}{
					"type":        "string",
					"description": "完整的任务描述",
				},
			},
			"required": []string{"task_prompt"},
		},
		Fn: p.runCodeAgent,
	})
	if p.hasWriter {
		registry.Register(&tools.FuncTool{
			ToolName:        "writer_agent",
			ToolDescription: "将论文撰写或修改指令委托给写作代理。",
			ToolParameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"instruction": map[string]interface{}{
						"type":        "string",
						"description": "写作指令",
					},
				},
				"required": []string{"instruction"},
			},
			Fn: p.runWriterAgent,
		})
	}
	tools.RegisterPlannerTools(registry, ws, hasTemplate)
	p.registry = registry
	return p, nil
}

// seedTemplate copies the template into the workspace as paper.md when
// it does not exist yet.
func seedTemplate(ws *workspace.Workspace, templateFile string) error {
	target := filepath.Join(ws.Root(), "paper.md")
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	data, err := os.ReadFile(templateFile)
	if err != nil {
		return fmt.Errorf("planner: read template: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("planner: seed paper.md: %w", err)
	}
	return nil
}

// Run executes one full turn for question. The sink is finalized before
// return on every path that produced output.
func (p *Planner) Run(ctx context.Context, question string) error {
	ctx, span := otel.Tracer("paperforge/agent").Start(ctx, "planner.run")
	defer span.End()
	span.SetAttributes(attribute.String("work_id", p.work.ID))

	conversation, err := p.loadConversation()
	if err != nil {
		return err
	}

	// replay guard: an identical most-recent user turn means the client
	// re-sent a question we already handled
	if lastUserContent(conversation) == question {
		slog.Info("duplicate user turn, treating as replay", "work_id", p.work.ID)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	conversation, records := p.cm.Compress(conversation)
	for _, r := range records {
		slog.Info("context compressed",
			"work_id", p.work.ID, "strategy", r.Strategy,
			"removed", r.Removed, "tokens_before", r.TokensBefore, "tokens_after", r.TokensAfter)
	}

	// persist the question before the LLM call so a mid-turn crash still
	// keeps it
	if _, err := p.log.Append("user", question, nil); err != nil {
		return err
	}
	conversation = append(conversation, providers.Message{Role: "user", Content: question})

	p.maybeGenerateTitle(ctx, question)

	defs := p.registry.ProviderDefs()
	for {
		// a cancelled or timed-out turn appends no assistant message:
		// buffered partial output is discarded, never finalized
		if err := ctx.Err(); err != nil {
			p.sink.Discard()
			return err
		}

		assistant, calls, err := p.brain.Stream(ctx, conversation, defs, p.sink.Token)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.sink.Discard()
				return err
			}
			p.sink.Token(fmt.Sprintf("(LLM 调用失败: %v)", err))
			p.sink.Finalize()
			return fmt.Errorf("planner: llm stream: %w", err)
		}
		conversation = append(conversation, assistant)

		if len(calls) == 0 {
			break
		}

		toolMsgs, err := p.dispatch(ctx, calls)
		if err != nil {
			p.sink.Discard()
			return err
		}
		conversation = append(conversation, toolMsgs...)
	}

	return p.sink.Finalize()
}

// loadConversation derives the LLM-facing message list from the chat log:
// system prompt first, then persisted user/assistant turns.
func (p *Planner) loadConversation() ([]providers.Message, error) {
	msgs, err := p.log.GetMessages(0)
	if err != nil {
		return nil, err
	}
	conversation := []providers.Message{
		{Role: "system", Content: plannerSystemPrompt(p.work.TemplateID != "", p.work.OutputMode)},
	}
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if m.Content == "" {
			continue
		}
		conversation = append(conversation, providers.Message{Role: m.Role, Content: m.Content})
	}
	return conversation, nil
}

func lastUserContent(msgs []providers.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// dispatch executes one turn's tool calls. Sub-agent calls run
// sequentially in reported order; simple tools run in parallel and are
// reassembled by index, so the returned tool messages always match the
// LLM-reported order.
func (p *Planner) dispatch(ctx context.Context, calls []providers.ToolCall) ([]providers.Message, error) {
	results := make([]*tools.Result, len(calls))

	type indexedResult struct {
		idx    int
		result *tools.Result
	}
	var wg sync.WaitGroup
	resultCh := make(chan indexedResult, len(calls))

	for i, tc := range calls {
		if isSubAgentTool(tc.Name) {
			continue
		}
		wg.Add(1)
		go func(idx int, tc providers.ToolCall) {
			defer wg.Done()
			resultCh <- indexedResult{idx: idx, result: p.registry.Execute(ctx, tc.Name, tc.Arguments)}
		}(i, tc)
	}

	// sub-agents in reported order, one at a time
	for i, tc := range calls {
		if !isSubAgentTool(tc.Name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		results[i] = p.registry.Execute(ctx, tc.Name, tc.Arguments)
	}

	go func() { wg.Wait(); close(resultCh) }()
	var collected []indexedResult
	for r := range resultCh {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })
	for _, r := range collected {
		results[r.idx] = r.result
	}

	msgs := make([]providers.Message, 0, len(calls))
	for i, tc := range calls {
		res := results[i]
		if res == nil {
			res = tools.ErrorResult(fmt.Sprintf("工具 %s 未执行", tc.Name))
		}
		argsJSON, _ := json.Marshal(tc.Arguments)
		slog.Info("planner tool call",
			"work_id", p.work.ID, "tool", tc.Name,
			"args_len", len(argsJSON), "is_error", res.IsError)
		msgs = append(msgs, providers.Message{
			Role:       "tool",
			Content:    res.ForLLM,
			ToolCallID: tc.ID,
		})
	}
	return msgs, nil
}

func isSubAgentTool(name string) bool {
	return name == "code_agent" || name == "writer_agent"
}

func (p *Planner) runCodeAgent(ctx context.Context, args map[string]interface{}) *tools.Result {
	task, _ := args["task_prompt"].(string)
	if task == "" {
		return tools.ErrorResult("task_prompt 不能为空")
	}
	p.subAgentMu.Lock()
	defer p.subAgentMu.Unlock()

	ca, err := NewCodeAgent(p.st, p.cfg, p.ws, p.work.UserID, p.sink)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("创建代码代理失败: %v", err))
	}
	out, err := ca.Run(ctx, task)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("代码代理执行失败: %v", err))
	}
	return tools.NewResult(out)
}

func (p *Planner) runWriterAgent(ctx context.Context, args map[string]interface{}) *tools.Result {
	instruction, _ := args["instruction"].(string)
	if instruction == "" {
		return tools.ErrorResult("instruction 不能为空")
	}
	p.subAgentMu.Lock()
	defer p.subAgentMu.Unlock()

	wa, err := NewWriterAgent(p.st, p.cfg, p.ws, p.work.UserID, p.work.OutputMode, p.sink)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("创建写作代理失败: %v", err))
	}
	out, err := wa.Run(ctx, instruction)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("写作代理执行失败: %v", err))
	}
	return tools.NewResult(out)
}
