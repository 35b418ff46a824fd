package tools

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/paperforge/paperforge/internal/wordml"
	"github.com/paperforge/paperforge/internal/workspace"
)

// pdf extraction is capped to the first 10 pages
const maxPDFPages = 10

// ListAttachmentsTool enumerates attachment/ recursively.
type ListAttachmentsTool struct {
	WS *workspace.Workspace
}

func (t *ListAttachmentsTool) Name() string { return "list_attachments" }
func (t *ListAttachmentsTool) Description() string {
	return "列出 attachment/ 目录下的所有附件文件。"
}
func (t *ListAttachmentsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListAttachmentsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	cats, err := t.WS.ListByCategory()
	if err != nil {
		return ErrorResult(fmt.Sprintf("列出附件失败: %v", err))
	}
	files := cats["attachments"]
	if len(files) == 0 {
		return NewResult("附件目录为空")
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共 %d 个附件:\n", len(files)))
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("  %s (%d bytes)\n", f.Path, f.Size))
	}
	return NewResult(strings.TrimRight(sb.String(), "\n"))
}

// ReadAttachmentTool extracts attachment content by extension.
type ReadAttachmentTool struct {
	WS *workspace.Workspace
}

func (t *ReadAttachmentTool) Name() string { return "read_attachment" }
func (t *ReadAttachmentTool) Description() string {
	return "读取附件内容。文本直接返回，csv/excel 转为表格摘要，docx 提取段落，pdf 按页提取（最多 10 页）。"
}
func (t *ReadAttachmentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "附件路径，相对于 attachment/ 或工作区根目录",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadAttachmentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path 不能为空")
	}
	abs, rel, err := resolveAttachment(t.WS, path)
	if err != nil {
		return ErrorResult(err.Error())
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".pdf":
		text, err := extractPDF(abs)
		if err != nil {
			return ErrorResult(fmt.Sprintf("解析 PDF 失败: %v", err))
		}
		return NewResult(text)
	case ".docx":
		doc, err := wordml.Open(abs)
		if err != nil {
			return ErrorResult(fmt.Sprintf("解析 docx 失败: %v", err))
		}
		return NewResult(strings.TrimSpace(doc.Text()))
	case ".csv", ".tsv":
		data, err := os.ReadFile(abs)
		if err != nil {
			return ErrorResult(fmt.Sprintf("读取 %s 失败: %v", rel, err))
		}
		summary, err := summarizeCSV(data)
		if err != nil {
			return ErrorResult(fmt.Sprintf("解析 CSV 失败: %v", err))
		}
		return NewResult(summary)
	default:
		fc, err := t.WS.Read(rel)
		if err != nil {
			return ErrorResult(fmt.Sprintf("读取 %s 失败: %v", rel, err))
		}
		if fc.Kind != workspace.KindText {
			return ErrorResult(fmt.Sprintf("不支持读取该类型附件: %s", rel))
		}
		return NewResult(fc.Content)
	}
}

// GetAttachmentInfoTool stats one attachment.
type GetAttachmentInfoTool struct {
	WS *workspace.Workspace
}

func (t *GetAttachmentInfoTool) Name() string { return "get_attachment_info" }
func (t *GetAttachmentInfoTool) Description() string {
	return "获取附件的文件信息（大小、修改时间）。"
}
func (t *GetAttachmentInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "附件路径",
			},
		},
		"required": []string{"path"},
	}
}

func (t *GetAttachmentInfoTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path 不能为空")
	}
	_, rel, err := resolveAttachment(t.WS, path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	fi, err := t.WS.Info(rel)
	if err != nil {
		return ErrorResult(fmt.Sprintf("获取附件信息失败: %v", err))
	}
	return NewResult(fmt.Sprintf("文件: %s\n大小: %d bytes\n修改时间: %s", fi.Path, fi.Size, fi.Modified))
}

// SearchAttachmentsTool matches attachment names by keyword.
type SearchAttachmentsTool struct {
	WS *workspace.Workspace
}

func (t *SearchAttachmentsTool) Name() string { return "search_attachments" }
func (t *SearchAttachmentsTool) Description() string {
	return "按关键字搜索附件文件名，可按扩展名过滤。"
}
func (t *SearchAttachmentsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"keyword": map[string]interface{}{
				"type":        "string",
				"description": "文件名关键字",
			},
			"file_type": map[string]interface{}{
				"type":        "string",
				"description": "扩展名过滤，如 pdf",
			},
		},
		"required": []string{"keyword"},
	}
}

func (t *SearchAttachmentsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	keyword, _ := args["keyword"].(string)
	fileType, _ := args["file_type"].(string)
	fileType = strings.TrimPrefix(strings.ToLower(fileType), ".")

	cats, err := t.WS.ListByCategory()
	if err != nil {
		return ErrorResult(fmt.Sprintf("搜索附件失败: %v", err))
	}
	var hits []workspace.FileInfo
	for _, f := range cats["attachments"] {
		if !strings.Contains(strings.ToLower(f.Name), strings.ToLower(keyword)) {
			continue
		}
		if fileType != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(f.Name), "."), fileType) {
			continue
		}
		hits = append(hits, f)
	}
	if len(hits) == 0 {
		return NewResult(fmt.Sprintf("未找到匹配「%s」的附件", keyword))
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("找到 %d 个匹配附件:\n", len(hits)))
	for _, f := range hits {
		sb.WriteString(fmt.Sprintf("  %s (%d bytes)\n", f.Path, f.Size))
	}
	return NewResult(strings.TrimRight(sb.String(), "\n"))
}

// resolveAttachment accepts paths relative to attachment/ or to the
// workspace root, returning the absolute and workspace-relative forms.
func resolveAttachment(ws *workspace.Workspace, path string) (abs, rel string, err error) {
	rel = filepath.ToSlash(path)
	if !strings.HasPrefix(rel, "attachment/") {
		rel = "attachment/" + rel
	}
	abs, err = ws.Resolve(rel)
	if err != nil {
		return "", "", err
	}
	if _, statErr := os.Stat(abs); statErr != nil {
		// fall back to workspace-root-relative
		rel2 := filepath.ToSlash(path)
		abs2, err2 := ws.Resolve(rel2)
		if err2 == nil {
			if _, statErr2 := os.Stat(abs2); statErr2 == nil {
				return abs2, rel2, nil
			}
		}
		return "", "", fmt.Errorf("附件不存在: %s", path)
	}
	return abs, rel, nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := r.NumPage()
	truncated := false
	if pages > maxPDFPages {
		pages = maxPDFPages
		truncated = true
	}

	var text strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(fmt.Sprintf("[第 %d 页]\n%s", i, pageText))
	}
	if truncated {
		text.WriteString(fmt.Sprintf("\n\n(仅显示前 %d 页，共 %d 页)", maxPDFPages, r.NumPage()))
	}
	return strings.TrimSpace(text.String()), nil
}

// summarizeCSV renders headers plus labeled rows, first row as header.
func summarizeCSV(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return "(空文件)", nil
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return "(空文件)", nil
		}
		return "", fmt.Errorf("read headers: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("列: " + strings.Join(headers, ", ") + "\n")
	rows := 0
	shown := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read row: %w", err)
		}
		rows++
		if shown >= 20 {
			continue
		}
		var fields []string
		for i, val := range record {
			if i >= len(headers) {
				break
			}
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			fields = append(fields, fmt.Sprintf("%s: %s", headers[i], val))
		}
		if len(fields) > 0 {
			sb.WriteString(strings.Join(fields, ", ") + "\n")
			shown++
		}
	}
	sb.WriteString(fmt.Sprintf("共 %d 行数据", rows))
	return sb.String(), nil
}
