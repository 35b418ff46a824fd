package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/paperforge/paperforge/internal/wordml"
	"github.com/paperforge/paperforge/internal/workspace"
)

// emusPerPixel converts 96-dpi pixels to EMUs.
const emusPerPixel = 9525

func paperDocxPath(ws *workspace.Workspace) string {
	return filepath.Join(ws.Root(), "paper.docx")
}

func openPaperDocx(ws *workspace.Workspace) (*wordml.Document, error) {
	path := paperDocxPath(ws)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("paper.docx 不存在，请先调用 create_document")
	}
	return wordml.Open(path)
}

func strProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func wordTool(name, desc string, props map[string]interface{}, required []string,
	fn func(ctx context.Context, args map[string]interface{}) *Result) Tool {
	return &FuncTool{
		ToolName:        name,
		ToolDescription: desc,
		ToolParameters: map[string]interface{}{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
		Fn: fn,
	}
}

// RegisterWordTools installs the word-mode writer tool set. Every tool
// operates on <workspace>/paper.docx.
func RegisterWordTools(r *Registry, ws *workspace.Workspace) {
	r.Register(wordTool("create_document",
		"创建一个新的空白 paper.docx。已存在时报错。",
		map[string]interface{}{
			"title": strProp("可选的文档标题，作为一级标题写入"),
		}, nil,
		func(ctx context.Context, args map[string]interface{}) *Result {
			path := paperDocxPath(ws)
			if _, err := os.Stat(path); err == nil {
				return ErrorResult("paper.docx 已存在")
			}
			doc := wordml.New()
			if title, _ := args["title"].(string); title != "" {
				doc.AddHeading(title, 1)
			}
			if err := doc.Save(path); err != nil {
				return ErrorResult(fmt.Sprintf("保存 paper.docx 失败: %v", err))
			}
			return NewResult("已创建 paper.docx")
		}))

	r.Register(wordTool("add_heading",
		"在文档末尾添加一个标题（级别 1-5）。",
		map[string]interface{}{
			"text":  strProp("标题文字"),
			"level": map[string]interface{}{"type": "integer", "description": "标题级别 1-5，默认 1"},
		}, []string{"text"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			text, _ := args["text"].(string)
			if text == "" {
				return ErrorResult("text 不能为空")
			}
			level := 1
			if f, ok := args["level"].(float64); ok {
				level = int(f)
			}
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				doc.AddHeading(text, level)
				return fmt.Sprintf("已添加 %d 级标题「%s」", level, text), nil
			})
		}))

	r.Register(wordTool("add_paragraph",
		"在文档末尾添加一个段落。",
		map[string]interface{}{
			"text": strProp("段落文字"),
		}, []string{"text"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			text, _ := args["text"].(string)
			if text == "" {
				return ErrorResult("text 不能为空")
			}
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				doc.AddParagraph(text)
				return "已添加段落", nil
			})
		}))

	r.Register(wordTool("add_table",
		"在文档末尾添加一个表格。rows 为二维字符串数组，第一行作为表头。",
		map[string]interface{}{
			"rows": map[string]interface{}{
				"type":        "array",
				"description": "表格内容，二维数组",
				"items": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
		}, []string{"rows"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			raw, ok := args["rows"].([]interface{})
			if !ok || len(raw) == 0 {
				return ErrorResult("rows 必须是非空二维数组")
			}
			rows := make([][]string, 0, len(raw))
			for _, rr := range raw {
				cells, ok := rr.([]interface{})
				if !ok {
					return ErrorResult("rows 的每个元素必须是字符串数组")
				}
				row := make([]string, 0, len(cells))
				for _, c := range cells {
					row = append(row, fmt.Sprintf("%v", c))
				}
				rows = append(rows, row)
			}
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				if err := doc.AddTable(rows); err != nil {
					return "", err
				}
				return fmt.Sprintf("已添加 %d 行 %d 列的表格", len(rows), len(rows[0])), nil
			})
		}))

	r.Register(wordTool("add_picture",
		"将工作区中的图片插入文档末尾。",
		map[string]interface{}{
			"path": strProp("图片路径，相对于工作区根目录，如 outputs/plots/plot_1.png"),
		}, []string{"path"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			rel, _ := args["path"].(string)
			if rel == "" {
				return ErrorResult("path 不能为空")
			}
			abs, err := ws.Resolve(rel)
			if err != nil {
				return ErrorResult(fmt.Sprintf("无效图片路径: %v", err))
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return ErrorResult(fmt.Sprintf("读取图片失败: %v", err))
			}
			var w, h int64
			if img, err := imaging.Open(abs); err == nil {
				b := img.Bounds()
				w = int64(b.Dx()) * emusPerPixel
				h = int64(b.Dy()) * emusPerPixel
			}
			name := filepath.Base(abs)
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				doc.AddPicture(name, data, w, h)
				return fmt.Sprintf("已插入图片 %s", name), nil
			})
		}))

	r.Register(wordTool("add_page_break",
		"在文档末尾添加分页符。",
		map[string]interface{}{}, nil,
		func(ctx context.Context, args map[string]interface{}) *Result {
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				doc.AddPageBreak()
				return "已添加分页符", nil
			})
		}))

	r.Register(wordTool("get_document_text",
		"获取 paper.docx 的全部文本内容。修改文档前应先调用此工具。",
		map[string]interface{}{}, nil,
		func(ctx context.Context, args map[string]interface{}) *Result {
			doc, err := openPaperDocx(ws)
			if err != nil {
				return ErrorResult(err.Error())
			}
			text := strings.TrimSpace(doc.Text())
			if text == "" {
				return NewResult("(文档为空)")
			}
			return NewResult(text)
		}))

	r.Register(wordTool("find_text_in_document",
		"在文档中查找文本，返回包含它的段落编号和内容。",
		map[string]interface{}{
			"text": strProp("要查找的文本"),
		}, []string{"text"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			needle, _ := args["text"].(string)
			if needle == "" {
				return ErrorResult("text 不能为空")
			}
			doc, err := openPaperDocx(ws)
			if err != nil {
				return ErrorResult(err.Error())
			}
			hits := doc.Find(needle)
			if len(hits) == 0 {
				return NewResult(fmt.Sprintf("未找到文本「%s」", needle))
			}
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("在 %d 个段落中找到「%s」:\n", len(hits), needle))
			for _, idx := range hits {
				sb.WriteString(fmt.Sprintf("  [%d] %s\n", idx, doc.Blocks[idx].ParagraphText()))
			}
			return NewResult(strings.TrimRight(sb.String(), "\n"))
		}))

	r.Register(wordTool("format_text",
		"对文档中匹配的文本应用加粗/斜体格式。",
		map[string]interface{}{
			"text":   strProp("要格式化的文本"),
			"bold":   map[string]interface{}{"type": "boolean", "description": "是否加粗"},
			"italic": map[string]interface{}{"type": "boolean", "description": "是否斜体"},
		}, []string{"text"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			needle, _ := args["text"].(string)
			if needle == "" {
				return ErrorResult("text 不能为空")
			}
			bold, _ := args["bold"].(bool)
			italic, _ := args["italic"].(bool)
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				n := doc.Format(needle, bold, italic)
				if n == 0 {
					return "", fmt.Errorf("未找到文本「%s」", needle)
				}
				return fmt.Sprintf("已对 %d 处「%s」应用格式", n, needle), nil
			})
		}))

	r.Register(wordTool("search_and_replace",
		"在整个文档中替换文本。",
		map[string]interface{}{
			"old_text": strProp("被替换的文本"),
			"new_text": strProp("替换为的文本"),
		}, []string{"old_text", "new_text"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			oldText, _ := args["old_text"].(string)
			newText, _ := args["new_text"].(string)
			if oldText == "" {
				return ErrorResult("old_text 不能为空")
			}
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				n := doc.Replace(oldText, newText)
				if n == 0 {
					return "", fmt.Errorf("未找到文本「%s」", oldText)
				}
				return fmt.Sprintf("已替换 %d 处", n), nil
			})
		}))

	r.Register(wordTool("delete_paragraph",
		"删除指定编号的段落（编号来自 find_text_in_document）。",
		map[string]interface{}{
			"index": map[string]interface{}{"type": "integer", "description": "段落编号"},
		}, []string{"index"},
		func(ctx context.Context, args map[string]interface{}) *Result {
			f, ok := args["index"].(float64)
			if !ok {
				return ErrorResult("index 必须是整数")
			}
			return mutatePaperDocx(ws, func(doc *wordml.Document) (string, error) {
				if err := doc.DeleteParagraph(int(f)); err != nil {
					return "", err
				}
				return fmt.Sprintf("已删除段落 [%d]", int(f)), nil
			})
		}))

	r.Register(wordTool("get_table_info",
		"列出文档中所有表格的行列数。",
		map[string]interface{}{}, nil,
		func(ctx context.Context, args map[string]interface{}) *Result {
			doc, err := openPaperDocx(ws)
			if err != nil {
				return ErrorResult(err.Error())
			}
			var sb strings.Builder
			count := 0
			for i, b := range doc.Blocks {
				if b.Kind != wordml.BlockTable {
					continue
				}
				count++
				cols := 0
				if len(b.Rows) > 0 {
					cols = len(b.Rows[0])
				}
				sb.WriteString(fmt.Sprintf("  表格 %d (块 [%d]): %d 行 %d 列\n", count, i, len(b.Rows), cols))
			}
			if count == 0 {
				return NewResult("文档中没有表格")
			}
			return NewResult(fmt.Sprintf("共 %d 个表格:\n%s", count, strings.TrimRight(sb.String(), "\n")))
		}))
}

// mutatePaperDocx loads paper.docx, applies fn, and saves it back.
func mutatePaperDocx(ws *workspace.Workspace, fn func(doc *wordml.Document) (string, error)) *Result {
	doc, err := openPaperDocx(ws)
	if err != nil {
		return ErrorResult(err.Error())
	}
	msg, err := fn(doc)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if err := doc.Save(paperDocxPath(ws)); err != nil {
		return ErrorResult(fmt.Sprintf("保存 paper.docx 失败: %v", err))
	}
	return NewResult(msg)
}
