package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/paperforge/paperforge/internal/workspace"
)

// headings that mark the tail sections of a paper; smart insertion goes
// just before the first of these
var tailHeadingKeys = []string{
	"conclusion", "references", "acknowledgment", "acknowledgement",
	"结论", "参考文献", "致谢",
}

type outputImage struct {
	rel string // workspace-relative, slash-separated
	mod time.Time
	sz  int64
}

// listOutputImages returns images under outputs/, newest first.
func listOutputImages(ws *workspace.Workspace) ([]outputImage, error) {
	root := filepath.Join(ws.Root(), "outputs")
	var imgs []outputImage
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp":
		default:
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(ws.Root(), path)
		imgs = append(imgs, outputImage{
			rel: filepath.ToSlash(rel),
			mod: st.ModTime(),
			sz:  st.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(imgs, func(i, j int) bool { return imgs[i].mod.After(imgs[j].mod) })
	return imgs, nil
}

// insertImageMarkdown places "![desc](rel)" into content per position.
func insertImageMarkdown(content, rel, description, position string) string {
	link := fmt.Sprintf("![%s](%s)", description, rel)
	lines := strings.Split(content, "\n")

	switch position {
	case "beginning":
		return link + "\n\n" + content
	case "end":
		out := strings.TrimRight(content, "\n")
		if out == "" {
			return link + "\n"
		}
		return out + "\n\n" + link + "\n"
	default: // smart
		for i, line := range lines {
			if headingLevel(line) == 0 {
				continue
			}
			text := strings.ToLower(headingText(line))
			for _, key := range tailHeadingKeys {
				if strings.Contains(text, key) {
					var out []string
					out = append(out, lines[:i]...)
					out = append(out, link, "")
					out = append(out, lines[i:]...)
					return strings.Join(out, "\n")
				}
			}
		}
		// no tail heading: after the last non-heading line
		last := -1
		for i, line := range lines {
			if strings.TrimSpace(line) != "" && headingLevel(line) == 0 {
				last = i
			}
		}
		if last < 0 {
			out := strings.TrimRight(content, "\n")
			if out == "" {
				return link + "\n"
			}
			return out + "\n\n" + link + "\n"
		}
		var out []string
		out = append(out, lines[:last+1]...)
		out = append(out, "", link)
		out = append(out, lines[last+1:]...)
		return strings.Join(out, "\n")
	}
}

func insertImageIntoFile(ws *workspace.Workspace, img outputImage, targetFile, description, position string) *Result {
	if targetFile == "" {
		targetFile = "paper.md"
	}
	if description == "" {
		description = strings.TrimSuffix(filepath.Base(img.rel), filepath.Ext(img.rel))
	}
	existing := ""
	if fc, err := ws.Read(targetFile); err == nil {
		existing = fc.Content
	}
	updated := insertImageMarkdown(existing, img.rel, description, position)
	if err := ws.Write(targetFile, updated); err != nil {
		return ErrorResult(fmt.Sprintf("写入 %s 失败: %v", targetFile, err))
	}
	return NewResult(fmt.Sprintf("已将图片 %s 插入到 %s", img.rel, targetFile))
}

// InsertLatestImageTool inserts the newest outputs/ image into a markdown file.
type InsertLatestImageTool struct {
	WS *workspace.Workspace
}

func (t *InsertLatestImageTool) Name() string { return "insert_latest_image" }
func (t *InsertLatestImageTool) Description() string {
	return "将 outputs/ 下最新生成的图片以 markdown 形式插入目标文件。position: smart 插入到结论/参考文献之前，end 末尾，beginning 开头。"
}
func (t *InsertLatestImageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_file": map[string]interface{}{
				"type":        "string",
				"description": "目标 markdown 文件，默认 paper.md",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "图片说明文字",
			},
			"position": map[string]interface{}{
				"type": "string",
				"enum": []string{"smart", "end", "beginning"},
			},
		},
	}
}

func (t *InsertLatestImageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	imgs, err := listOutputImages(t.WS)
	if err != nil {
		return ErrorResult(fmt.Sprintf("查找图片失败: %v", err))
	}
	if len(imgs) == 0 {
		return ErrorResult("outputs/ 目录下没有图片")
	}
	targetFile, _ := args["target_file"].(string)
	description, _ := args["description"].(string)
	position, _ := args["position"].(string)
	return insertImageIntoFile(t.WS, imgs[0], targetFile, description, position)
}

// ListOutputImagesTool lists images under outputs/, newest first.
type ListOutputImagesTool struct {
	WS *workspace.Workspace
}

func (t *ListOutputImagesTool) Name() string { return "list_output_images" }
func (t *ListOutputImagesTool) Description() string {
	return "列出 outputs/ 目录下的所有图片，按修改时间倒序。"
}
func (t *ListOutputImagesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListOutputImagesTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	imgs, err := listOutputImages(t.WS)
	if err != nil {
		return ErrorResult(fmt.Sprintf("列出图片失败: %v", err))
	}
	if len(imgs) == 0 {
		return NewResult("outputs/ 目录下没有图片")
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共 %d 张图片:\n", len(imgs)))
	for _, img := range imgs {
		sb.WriteString(fmt.Sprintf("  %s (%d bytes, %s)\n", img.rel, img.sz, img.mod.Format("2006-01-02 15:04:05")))
	}
	return NewResult(strings.TrimRight(sb.String(), "\n"))
}

// InsertImageByNameTool inserts a named outputs/ image.
type InsertImageByNameTool struct {
	WS *workspace.Workspace
}

func (t *InsertImageByNameTool) Name() string { return "insert_image_by_name" }
func (t *InsertImageByNameTool) Description() string {
	return "按文件名将 outputs/ 下的图片插入目标 markdown 文件。"
}
func (t *InsertImageByNameTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "图片文件名",
			},
			"target_file": map[string]interface{}{
				"type":        "string",
				"description": "目标 markdown 文件，默认 paper.md",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "图片说明文字",
			},
		},
		"required": []string{"name"},
	}
}

func (t *InsertImageByNameTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if name == "" {
		return ErrorResult("name 不能为空")
	}
	imgs, err := listOutputImages(t.WS)
	if err != nil {
		return ErrorResult(fmt.Sprintf("查找图片失败: %v", err))
	}
	for _, img := range imgs {
		if filepath.Base(img.rel) == name {
			targetFile, _ := args["target_file"].(string)
			description, _ := args["description"].(string)
			return insertImageIntoFile(t.WS, img, targetFile, description, "smart")
		}
	}
	return ErrorResult(fmt.Sprintf("outputs/ 目录下未找到图片: %s", name))
}

// GetLatestImageInfoTool reports the newest image with its dimensions.
type GetLatestImageInfoTool struct {
	WS *workspace.Workspace
}

func (t *GetLatestImageInfoTool) Name() string { return "get_latest_image_info" }
func (t *GetLatestImageInfoTool) Description() string {
	return "获取 outputs/ 下最新图片的信息（路径、尺寸、大小）。"
}
func (t *GetLatestImageInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *GetLatestImageInfoTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	imgs, err := listOutputImages(t.WS)
	if err != nil {
		return ErrorResult(fmt.Sprintf("查找图片失败: %v", err))
	}
	if len(imgs) == 0 {
		return ErrorResult("outputs/ 目录下没有图片")
	}
	latest := imgs[0]
	info := fmt.Sprintf("最新图片: %s\n大小: %d bytes\n修改时间: %s",
		latest.rel, latest.sz, latest.mod.Format("2006-01-02 15:04:05"))

	abs := filepath.Join(t.WS.Root(), filepath.FromSlash(latest.rel))
	if img, err := imaging.Open(abs); err == nil {
		b := img.Bounds()
		info += fmt.Sprintf("\n尺寸: %dx%d", b.Dx(), b.Dy())
	}
	return NewResult(info)
}
