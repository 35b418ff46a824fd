package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/paperforge/paperforge/internal/workspace"
)

// headingLevel returns the run length of leading '#'. Zero means the line
// is not a heading.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n
}

// headingText strips the '#' run, surrounding whitespace, and bold markers.
func headingText(line string) string {
	t := strings.TrimLeft(line, "#")
	t = strings.TrimSpace(t)
	t = strings.Trim(t, "*")
	return strings.TrimSpace(t)
}

// findSection locates the first heading whose text contains section
// (case-insensitive). It returns the heading line index and the body span
// [bodyStart, bodyEnd) running up to the next heading of level <= L.
func findSection(lines []string, section string) (headIdx, bodyStart, bodyEnd, level int, found bool) {
	needle := strings.ToLower(strings.TrimSpace(section))
	for i, line := range lines {
		l := headingLevel(line)
		if l == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(headingText(line)), needle) {
			headIdx = i
			level = l
			bodyStart = i + 1
			bodyEnd = len(lines)
			for j := bodyStart; j < len(lines); j++ {
				if hl := headingLevel(lines[j]); hl > 0 && hl <= level {
					bodyEnd = j
					break
				}
			}
			return headIdx, bodyStart, bodyEnd, level, true
		}
	}
	return 0, 0, 0, 0, false
}

// updateSection replaces the body of section with newContent, framed by
// blank lines and keeping the original heading. A missing section appends
// "# **section**" plus the content at end of file.
func updateSection(content, section, newContent string) string {
	lines := strings.Split(content, "\n")
	headIdx, _, bodyEnd, _, found := findSection(lines, section)
	if !found {
		out := strings.TrimRight(content, "\n")
		if out != "" {
			out += "\n\n"
		}
		return out + fmt.Sprintf("# **%s**\n\n%s\n", section, strings.TrimRight(newContent, "\n"))
	}

	var out []string
	out = append(out, lines[:headIdx+1]...)
	out = append(out, "")
	out = append(out, strings.Split(strings.TrimRight(newContent, "\n"), "\n")...)
	out = append(out, "")
	out = append(out, lines[bodyEnd:]...)
	return strings.Join(out, "\n")
}

// UpdateTemplateTool rewrites one section of a paper file.
type UpdateTemplateTool struct {
	WS *workspace.Workspace
}

func (t *UpdateTemplateTool) Name() string { return "update_template" }
func (t *UpdateTemplateTool) Description() string {
	return "更新论文模板中指定章节的内容。section 为必填项。"
}
func (t *UpdateTemplateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"template_name": map[string]interface{}{
				"type":        "string",
				"description": "目标文件名，默认 paper.md",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "章节的新内容",
			},
			"section": map[string]interface{}{
				"type":        "string",
				"description": "要更新的章节标题（必填）",
			},
		},
		"required": []string{"content", "section"},
	}
}

func (t *UpdateTemplateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	section, _ := args["section"].(string)
	if strings.TrimSpace(section) == "" {
		return ErrorResult("update_template 需要非空的 section 参数")
	}
	content, _ := args["content"].(string)
	name, _ := args["template_name"].(string)
	if name == "" {
		name = "paper.md"
	}

	existing := ""
	if fc, err := t.WS.Read(name); err == nil {
		existing = fc.Content
	}
	updated := updateSection(existing, section, content)
	if err := t.WS.Write(name, updated); err != nil {
		return ErrorResult(fmt.Sprintf("写入 %s 失败: %v", name, err))
	}
	return NewResult(fmt.Sprintf("已更新 %s 的章节「%s」", name, section))
}

// AnalyzeTemplateTool lists the heading structure of paper.md.
type AnalyzeTemplateTool struct {
	WS *workspace.Workspace
}

func (t *AnalyzeTemplateTool) Name() string { return "analyze_template" }
func (t *AnalyzeTemplateTool) Description() string {
	return "分析 paper.md 的章节结构，返回标题层级列表。"
}
func (t *AnalyzeTemplateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *AnalyzeTemplateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	fc, err := t.WS.Read("paper.md")
	if err != nil {
		return ErrorResult(fmt.Sprintf("读取 paper.md 失败: %v", err))
	}
	var sb strings.Builder
	sb.WriteString("论文结构:\n")
	count := 0
	for _, line := range strings.Split(fc.Content, "\n") {
		if l := headingLevel(line); l > 0 {
			sb.WriteString(strings.Repeat("  ", l-1))
			sb.WriteString(fmt.Sprintf("- %s\n", headingText(line)))
			count++
		}
	}
	if count == 0 {
		return NewResult("paper.md 中未找到任何章节标题")
	}
	return NewResult(strings.TrimRight(sb.String(), "\n"))
}

// GetSectionContentTool returns one section's body.
type GetSectionContentTool struct {
	WS *workspace.Workspace
}

func (t *GetSectionContentTool) Name() string { return "get_section_content" }
func (t *GetSectionContentTool) Description() string {
	return "获取 paper.md 中指定章节的内容。"
}
func (t *GetSectionContentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"section_title": map[string]interface{}{
				"type":        "string",
				"description": "章节标题",
			},
		},
		"required": []string{"section_title"},
	}
}

func (t *GetSectionContentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	title, _ := args["section_title"].(string)
	if title == "" {
		return ErrorResult("section_title 不能为空")
	}
	fc, err := t.WS.Read("paper.md")
	if err != nil {
		return ErrorResult(fmt.Sprintf("读取 paper.md 失败: %v", err))
	}
	lines := strings.Split(fc.Content, "\n")
	headIdx, bodyStart, bodyEnd, _, found := findSection(lines, title)
	if !found {
		return ErrorResult(fmt.Sprintf("未找到章节「%s」", title))
	}
	body := strings.TrimSpace(strings.Join(lines[bodyStart:bodyEnd], "\n"))
	return NewResult(fmt.Sprintf("%s\n\n%s", lines[headIdx], body))
}

// UpdateSectionContentTool rewrites or appends to a section.
type UpdateSectionContentTool struct {
	WS *workspace.Workspace
}

func (t *UpdateSectionContentTool) Name() string { return "update_section_content" }
func (t *UpdateSectionContentTool) Description() string {
	return "更新 paper.md 中指定章节的内容。mode 可选 replace（默认）或 append。"
}
func (t *UpdateSectionContentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"section_title": map[string]interface{}{
				"type":        "string",
				"description": "章节标题",
			},
			"new_content": map[string]interface{}{
				"type":        "string",
				"description": "新内容",
			},
			"mode": map[string]interface{}{
				"type":        "string",
				"description": "replace 或 append",
				"enum":        []string{"replace", "append"},
			},
		},
		"required": []string{"section_title", "new_content"},
	}
}

func (t *UpdateSectionContentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	title, _ := args["section_title"].(string)
	newContent, _ := args["new_content"].(string)
	mode, _ := args["mode"].(string)
	if title == "" {
		return ErrorResult("section_title 不能为空")
	}

	existing := ""
	if fc, err := t.WS.Read("paper.md"); err == nil {
		existing = fc.Content
	}

	if mode == "append" {
		lines := strings.Split(existing, "\n")
		_, bodyStart, bodyEnd, _, found := findSection(lines, title)
		if found {
			body := strings.TrimRight(strings.Join(lines[bodyStart:bodyEnd], "\n"), "\n")
			newContent = strings.TrimSpace(body + "\n\n" + newContent)
		}
	}

	updated := updateSection(existing, title, newContent)
	if err := t.WS.Write("paper.md", updated); err != nil {
		return ErrorResult(fmt.Sprintf("写入 paper.md 失败: %v", err))
	}
	return NewResult(fmt.Sprintf("已更新章节「%s」", title))
}

// AddSectionTool appends a new top-level section.
type AddSectionTool struct {
	WS *workspace.Workspace
}

func (t *AddSectionTool) Name() string { return "add_section" }
func (t *AddSectionTool) Description() string {
	return "在 paper.md 末尾添加一个新章节。"
}
func (t *AddSectionTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"section_title": map[string]interface{}{
				"type":        "string",
				"description": "新章节标题",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "章节初始内容（可选）",
			},
		},
		"required": []string{"section_title"},
	}
}

func (t *AddSectionTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	title, _ := args["section_title"].(string)
	if title == "" {
		return ErrorResult("section_title 不能为空")
	}
	content, _ := args["content"].(string)

	existing := ""
	if fc, err := t.WS.Read("paper.md"); err == nil {
		existing = fc.Content
	}
	if lines := strings.Split(existing, "\n"); len(lines) > 0 {
		if _, _, _, _, found := findSection(lines, title); found {
			return ErrorResult(fmt.Sprintf("章节「%s」已存在", title))
		}
	}

	out := strings.TrimRight(existing, "\n")
	if out != "" {
		out += "\n\n"
	}
	out += fmt.Sprintf("# **%s**\n", title)
	if content != "" {
		out += "\n" + strings.TrimRight(content, "\n") + "\n"
	}
	if err := t.WS.Write("paper.md", out); err != nil {
		return ErrorResult(fmt.Sprintf("写入 paper.md 失败: %v", err))
	}
	return NewResult(fmt.Sprintf("已添加章节「%s」", title))
}

// RenameSectionTitleTool renames a heading, keeping its level and body.
type RenameSectionTitleTool struct {
	WS *workspace.Workspace
}

func (t *RenameSectionTitleTool) Name() string { return "rename_section_title" }
func (t *RenameSectionTitleTool) Description() string {
	return "重命名 paper.md 中的章节标题。"
}
func (t *RenameSectionTitleTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"old_title": map[string]interface{}{
				"type":        "string",
				"description": "现有标题",
			},
			"new_title": map[string]interface{}{
				"type":        "string",
				"description": "新标题",
			},
		},
		"required": []string{"old_title", "new_title"},
	}
}

func (t *RenameSectionTitleTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	oldTitle, _ := args["old_title"].(string)
	newTitle, _ := args["new_title"].(string)
	if oldTitle == "" || newTitle == "" {
		return ErrorResult("old_title 和 new_title 均不能为空")
	}
	fc, err := t.WS.Read("paper.md")
	if err != nil {
		return ErrorResult(fmt.Sprintf("读取 paper.md 失败: %v", err))
	}
	lines := strings.Split(fc.Content, "\n")
	headIdx, _, _, level, found := findSection(lines, oldTitle)
	if !found {
		return ErrorResult(fmt.Sprintf("未找到章节「%s」", oldTitle))
	}

	// keep bold markers when the original heading used them
	marker := ""
	if strings.Contains(lines[headIdx], "**") {
		marker = "**"
	}
	lines[headIdx] = fmt.Sprintf("%s %s%s%s", strings.Repeat("#", level), marker, newTitle, marker)
	if err := t.WS.Write("paper.md", strings.Join(lines, "\n")); err != nil {
		return ErrorResult(fmt.Sprintf("写入 paper.md 失败: %v", err))
	}
	return NewResult(fmt.Sprintf("已将章节「%s」重命名为「%s」", oldTitle, newTitle))
}
