package workspace

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/paperforge/paperforge/internal/wordml"
)

// ExportZip packages the whole workspace into a temporary zip archive and
// returns its path. The caller removes the file when done. When paper.md
// exists a derived paper.docx is added to the archive; failure of that
// derivation is logged and skipped.
func (w *Workspace) ExportZip() (string, error) {
	tmp, err := os.CreateTemp("", "workspace-"+w.workID+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("export: create temp: %w", err)
	}
	defer tmp.Close()

	zw := zip.NewWriter(tmp)
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(fw, f)
		return err
	})
	if err != nil {
		zw.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("export: walk workspace: %w", err)
	}

	// derived docx, non-fatal
	if _, statErr := os.Stat(filepath.Join(w.root, "paper.docx")); os.IsNotExist(statErr) {
		if src, readErr := os.ReadFile(filepath.Join(w.root, "paper.md")); readErr == nil {
			if docx, convErr := MarkdownToDocx(src); convErr == nil {
				if fw, zerr := zw.Create("paper.docx"); zerr == nil {
					fw.Write(docx)
				}
			} else {
				slog.Warn("export: paper.docx derivation failed", "work_id", w.workID, "error", convErr)
			}
		}
	}

	if err := zw.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("export: close zip: %w", err)
	}
	return tmp.Name(), nil
}

// MarkdownToDocx converts markdown to a minimal Word document: heading
// levels 1-5, paragraphs, list items as bulleted paragraphs. Inline
// emphasis is stripped to plain text.
func MarkdownToDocx(src []byte) ([]byte, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(src))

	doc := wordml.New()
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Heading:
			doc.AddHeading(nodeText(t, src), t.Level)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if _, inItem := t.Parent().(*ast.ListItem); inItem {
				doc.AddParagraph("• " + nodeText(t, src))
			} else {
				doc.AddParagraph(nodeText(t, src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			doc.AddParagraph(linesText(t, src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			doc.AddParagraph(linesText(t, src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("export: walk markdown: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// nodeText flattens every text segment under n, dropping inline markup.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func linesText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}
