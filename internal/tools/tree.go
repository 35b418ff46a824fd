package tools

import (
	"context"
	"fmt"

	"github.com/paperforge/paperforge/internal/workspace"
)

// TreeTool renders the workspace directory tree.
type TreeTool struct {
	WS *workspace.Workspace
}

func (t *TreeTool) Name() string { return "tree" }
func (t *TreeTool) Description() string {
	return "以 ascii 树形结构列出工作区（或指定子目录）的文件。"
}
func (t *TreeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"directory": map[string]interface{}{
				"type":        "string",
				"description": "子目录，留空表示整个工作区",
			},
		},
	}
}

func (t *TreeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	dir, _ := args["directory"].(string)
	out, err := t.WS.Tree(dir)
	if err != nil {
		return ErrorResult(fmt.Sprintf("生成目录树失败: %v", err))
	}
	return NewResult(out)
}
