package tools

import (
	"context"

	"github.com/paperforge/paperforge/internal/sandbox"
)

// Sandbox tool set bound to one code agent run. Every result feeds back
// verbatim as the tool message; sandbox failures arrive as strings.

type ExecuteCodeTool struct {
	SB *sandbox.Sandbox
}

func (t *ExecuteCodeTool) Name() string { return "execute_code" }
func (t *ExecuteCodeTool) Description() string {
	return "直接执行一段 Python 代码并返回输出。matplotlib 图表会自动保存到 outputs/plots/。"
}
func (t *ExecuteCodeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "要执行的 Python 代码",
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecuteCodeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	code, _ := args["code"].(string)
	if code == "" {
		return ErrorResult("code 不能为空")
	}
	return NewResult(t.SB.ExecuteInline(ctx, code))
}

type SaveAndExecuteTool struct {
	SB *sandbox.Sandbox
}

func (t *SaveAndExecuteTool) Name() string { return "save_and_execute" }
func (t *SaveAndExecuteTool) Description() string {
	return "将 Python 代码保存到 code/ 目录并执行。"
}
func (t *SaveAndExecuteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "要保存并执行的 Python 代码",
			},
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "保存的文件名",
			},
		},
		"required": []string{"code", "filename"},
	}
}

func (t *SaveAndExecuteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	code, _ := args["code"].(string)
	filename, _ := args["filename"].(string)
	if code == "" {
		return ErrorResult("code 不能为空")
	}
	return NewResult(t.SB.SaveAndExecute(ctx, code, filename))
}

type ExecuteFileTool struct {
	SB *sandbox.Sandbox
}

func (t *ExecuteFileTool) Name() string { return "execute_file" }
func (t *ExecuteFileTool) Description() string {
	return "执行工作区中已存在的 Python 脚本。"
}
func (t *ExecuteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "脚本路径，如 code/analysis.py",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ExecuteFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path 不能为空")
	}
	return NewResult(t.SB.ExecuteFile(ctx, path))
}

type EditCodeFileTool struct {
	SB *sandbox.Sandbox
}

func (t *EditCodeFileTool) Name() string { return "edit_code_file" }
func (t *EditCodeFileTool) Description() string {
	return "替换 code/ 目录下已有脚本的内容，替换前自动备份。文件不存在时报错。"
}
func (t *EditCodeFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "要编辑的文件名",
			},
			"code": map[string]interface{}{
				"type":        "string",
				"description": "新的完整代码",
			},
		},
		"required": []string{"filename", "code"},
	}
}

func (t *EditCodeFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filename, _ := args["filename"].(string)
	code, _ := args["code"].(string)
	if filename == "" || code == "" {
		return ErrorResult("filename 和 code 均不能为空")
	}
	return NewResult(t.SB.EditFile(filename, code))
}

type ListCodeFilesTool struct {
	SB *sandbox.Sandbox
}

func (t *ListCodeFilesTool) Name() string { return "list_code_files" }
func (t *ListCodeFilesTool) Description() string {
	return "列出 code/ 目录下的 Python 脚本。"
}
func (t *ListCodeFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListCodeFilesTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return NewResult(t.SB.ListFiles())
}

// RegisterSandboxTools installs the code agent tool set on a registry.
func RegisterSandboxTools(r *Registry, sb *sandbox.Sandbox) {
	r.Register(&SaveAndExecuteTool{SB: sb})
	r.Register(&ExecuteCodeTool{SB: sb})
	r.Register(&ExecuteFileTool{SB: sb})
	r.Register(&EditCodeFileTool{SB: sb})
	r.Register(&ListCodeFilesTool{SB: sb})
}
