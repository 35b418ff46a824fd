package agent

import (
	"context"
	"strings"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/llm"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/tools"
	"github.com/paperforge/paperforge/internal/workspace"
)

// remediationHints maps tool-error substrings to the hint appended for
// the planner/LLM.
var remediationHints = []struct {
	substr string
	hint   string
}{
	{"paper.docx 不存在", "提示：请先调用 create_document 创建文档。"},
	{"已存在", "提示：文档已创建，直接调用编辑工具即可。"},
	{"未找到文本", "提示：请先调用 get_document_text 查看当前内容，确认文本后再操作。"},
	{"未找到章节", "提示：请先调用 analyze_template 查看现有章节结构。"},
	{"不是一个段落", "提示：请用 find_text_in_document 重新确认段落编号。"},
	{"out of range", "提示：段落编号超出范围，请用 find_text_in_document 重新确认。"},
}

// WriterAgent executes one high-level writing instruction in the work's
// output mode.
type WriterAgent struct {
	mode string
	loop *subLoop
}

// NewWriterAgent resolves the user's writing-role model and the
// mode-specific tool set. latex mode builds an agent that only reports
// itself unsupported.
func NewWriterAgent(st *store.Store, cfg *config.Config, ws *workspace.Workspace, userID, outputMode string, parent *stream.PersistentSink) (*WriterAgent, error) {
	if outputMode == store.OutputLatex {
		return &WriterAgent{mode: outputMode}, nil
	}

	client, err := llm.ForRole(st, cfg.Agents, userID, store.RoleWriting)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	system := writerMarkdownPrompt
	if outputMode == store.OutputWord {
		tools.RegisterWordTools(registry, ws)
		system = writerWordPrompt
	} else {
		registry.Register(&tools.WritemdTool{WS: ws})
		registry.Register(&tools.UpdateTemplateTool{WS: ws})
	}

	maxTurns := cfg.Agents.MaxWriterIterations
	if maxTurns <= 0 {
		maxTurns = 100
	}
	return &WriterAgent{
		mode: outputMode,
		loop: &subLoop{
			client:     client,
			registry:   registry,
			sink:       stream.NewSubSink(parent, "writer_agent"),
			system:     system,
			maxTurns:   maxTurns,
			resultHook: applyRemediationHint,
		},
	}, nil
}

// Run executes the instruction and returns the final output.
func (a *WriterAgent) Run(ctx context.Context, instruction string) (string, error) {
	if a.mode == store.OutputLatex {
		return "latex 输出模式暂不支持写作代理，本次调用不应发生", nil
	}
	a.loop.sink.Card("start", map[string]interface{}{"instruction": instruction})
	out, err := a.loop.run(ctx, instruction)
	if err != nil {
		a.loop.sink.Card("error", map[string]interface{}{"error": err.Error()})
		a.loop.sink.Finalize()
		return "", err
	}
	a.loop.sink.Finalize()
	return out, nil
}

// applyRemediationHint appends an operation-specific hint to tool errors.
func applyRemediationHint(toolName string, res *tools.Result) string {
	if !res.IsError {
		return res.ForLLM
	}
	for _, h := range remediationHints {
		if strings.Contains(res.ForLLM, h.substr) {
			return res.ForLLM + "\n" + h.hint
		}
	}
	return res.ForLLM
}
