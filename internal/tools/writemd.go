package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/paperforge/paperforge/internal/workspace"
)

// WritemdTool writes or modifies a markdown file in the workspace root.
type WritemdTool struct {
	WS *workspace.Workspace
}

func (t *WritemdTool) Name() string { return "writemd" }
func (t *WritemdTool) Description() string {
	return "写入或修改工作区中的 markdown 文件。mode: overwrite 覆盖全文，append 追加到末尾，" +
		"insert 插入到开头，modify 替换 target 指定的原文，smart_replace 容忍空白差异地替换 target，" +
		"section_update 更新 section 指定的章节。"
}
func (t *WritemdTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "目标文件名，默认 paper.md",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "写入的内容",
			},
			"mode": map[string]interface{}{
				"type": "string",
				"enum": []string{"overwrite", "append", "modify", "insert", "smart_replace", "section_update"},
			},
			"target": map[string]interface{}{
				"type":        "string",
				"description": "modify/smart_replace 模式下要被替换的原文",
			},
			"section": map[string]interface{}{
				"type":        "string",
				"description": "section_update 模式下的章节标题",
			},
		},
		"required": []string{"content"},
	}
}

func (t *WritemdTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, _ := args["content"].(string)
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "overwrite"
	}
	filename, _ := args["filename"].(string)
	if filename == "" {
		filename = "paper.md"
	}
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}

	existing := ""
	if fc, err := t.WS.Read(filename); err == nil {
		existing = fc.Content
	}

	var updated string
	switch mode {
	case "overwrite":
		updated = content
	case "append":
		if existing == "" {
			updated = content
		} else {
			updated = strings.TrimRight(existing, "\n") + "\n\n" + content
		}
	case "insert":
		if existing == "" {
			updated = content
		} else {
			updated = strings.TrimRight(content, "\n") + "\n\n" + existing
		}
	case "modify":
		target, _ := args["target"].(string)
		if target == "" {
			return ErrorResult("modify 模式需要 target 参数")
		}
		if !strings.Contains(existing, target) {
			return ErrorResult(fmt.Sprintf("在 %s 中未找到 target 内容", filename))
		}
		updated = strings.Replace(existing, target, content, 1)
	case "smart_replace":
		target, _ := args["target"].(string)
		if target == "" {
			return ErrorResult("smart_replace 模式需要 target 参数")
		}
		var ok bool
		updated, ok = smartReplace(existing, target, content)
		if !ok {
			return ErrorResult(fmt.Sprintf("在 %s 中未找到与 target 匹配的内容", filename))
		}
	case "section_update":
		section, _ := args["section"].(string)
		if strings.TrimSpace(section) == "" {
			return ErrorResult("section_update 模式需要 section 参数")
		}
		updated = updateSection(existing, section, content)
	default:
		return ErrorResult(fmt.Sprintf("未知 mode: %s", mode))
	}

	if err := t.WS.Write(filename, updated); err != nil {
		return ErrorResult(fmt.Sprintf("写入 %s 失败: %v", filename, err))
	}
	return NewResult(fmt.Sprintf("已写入 %s (mode=%s, %d 字节)", filename, mode, len(updated)))
}

// smartReplace replaces target with replacement, falling back to a
// whitespace-insensitive match when the exact text is absent.
func smartReplace(content, target, replacement string) (string, bool) {
	if strings.Contains(content, target) {
		return strings.Replace(content, target, replacement, 1), true
	}
	fields := strings.Fields(target)
	if len(fields) == 0 {
		return content, false
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = regexp.QuoteMeta(f)
	}
	re, err := regexp.Compile(strings.Join(parts, `\s+`))
	if err != nil {
		return content, false
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return content, false
	}
	return content[:loc[0]] + replacement + content[loc[1]:], true
}
