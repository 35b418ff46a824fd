// Package wordml reads and writes the small subset of OOXML WordprocessingML
// the writer agent needs: headings 1-5, paragraphs with bold/italic runs,
// tables, inline pictures, and page breaks.
package wordml

import (
	"fmt"
	"strings"
)

// Run is a span of text with uniform formatting.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Block kinds.
const (
	BlockParagraph = "paragraph"
	BlockTable     = "table"
	BlockPicture   = "picture"
	BlockPageBreak = "page_break"
)

// Block is one body-level element.
type Block struct {
	Kind string

	// paragraph
	Style string // "", "Heading1".."Heading5"
	Runs  []Run

	// table
	Rows [][]string

	// picture
	ImageName string // key into Document.Media
	WidthEMU  int64
	HeightEMU int64
}

// Document is an in-memory Word document.
type Document struct {
	Blocks []Block
	Media  map[string][]byte // media file name -> bytes
}

// New returns an empty document.
func New() *Document {
	return &Document{Media: make(map[string][]byte)}
}

// AddHeading appends a heading paragraph. Levels outside 1..5 are clamped.
func (d *Document) AddHeading(text string, level int) {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	d.Blocks = append(d.Blocks, Block{
		Kind:  BlockParagraph,
		Style: fmt.Sprintf("Heading%d", level),
		Runs:  []Run{{Text: text}},
	})
}

// AddParagraph appends a body paragraph.
func (d *Document) AddParagraph(text string) {
	d.Blocks = append(d.Blocks, Block{
		Kind: BlockParagraph,
		Runs: []Run{{Text: text}},
	})
}

// AddStyledParagraph appends a paragraph with explicit runs.
func (d *Document) AddStyledParagraph(runs []Run) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockParagraph, Runs: runs})
}

// AddTable appends a table. The first row is rendered as the header row.
func (d *Document) AddTable(rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("wordml: table needs at least one row")
	}
	width := len(rows[0])
	for i, r := range rows {
		if len(r) != width {
			return fmt.Errorf("wordml: row %d has %d cells, want %d", i, len(r), width)
		}
	}
	d.Blocks = append(d.Blocks, Block{Kind: BlockTable, Rows: rows})
	return nil
}

// AddPicture embeds image bytes and appends an inline picture block.
// width and height are in EMUs (914400 per inch).
func (d *Document) AddPicture(name string, data []byte, widthEMU, heightEMU int64) {
	if d.Media == nil {
		d.Media = make(map[string][]byte)
	}
	d.Media[name] = data
	d.Blocks = append(d.Blocks, Block{
		Kind:      BlockPicture,
		ImageName: name,
		WidthEMU:  widthEMU,
		HeightEMU: heightEMU,
	})
}

// AddPageBreak appends a page break.
func (d *Document) AddPageBreak() {
	d.Blocks = append(d.Blocks, Block{Kind: BlockPageBreak})
}

// ParagraphText returns the concatenated text of a paragraph block.
func (b *Block) ParagraphText() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Text renders the whole document as plain text, one block per line,
// tables as tab-separated rows.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		switch b.Kind {
		case BlockParagraph:
			sb.WriteString(b.ParagraphText())
			sb.WriteString("\n")
		case BlockTable:
			for _, row := range b.Rows {
				sb.WriteString(strings.Join(row, "\t"))
				sb.WriteString("\n")
			}
		case BlockPicture:
			sb.WriteString(fmt.Sprintf("[image: %s]\n", b.ImageName))
		}
	}
	return sb.String()
}

// Find returns the indexes of paragraph blocks whose text contains needle.
func (d *Document) Find(needle string) []int {
	var hits []int
	for i, b := range d.Blocks {
		if b.Kind == BlockParagraph && strings.Contains(b.ParagraphText(), needle) {
			hits = append(hits, i)
		}
	}
	return hits
}

// Replace substitutes old with new across all paragraph runs and table
// cells, returning the number of replacements.
func (d *Document) Replace(old, new string) int {
	if old == "" {
		return 0
	}
	count := 0
	for i := range d.Blocks {
		b := &d.Blocks[i]
		switch b.Kind {
		case BlockParagraph:
			for j := range b.Runs {
				n := strings.Count(b.Runs[j].Text, old)
				if n > 0 {
					b.Runs[j].Text = strings.ReplaceAll(b.Runs[j].Text, old, new)
					count += n
				}
			}
		case BlockTable:
			for r := range b.Rows {
				for c := range b.Rows[r] {
					n := strings.Count(b.Rows[r][c], old)
					if n > 0 {
						b.Rows[r][c] = strings.ReplaceAll(b.Rows[r][c], old, new)
						count += n
					}
				}
			}
		}
	}
	return count
}

// DeleteParagraph removes the paragraph block at index. The index is a
// raw block index, as reported by Find.
func (d *Document) DeleteParagraph(index int) error {
	if index < 0 || index >= len(d.Blocks) {
		return fmt.Errorf("wordml: block index %d out of range", index)
	}
	if d.Blocks[index].Kind != BlockParagraph {
		return fmt.Errorf("wordml: block %d is not a paragraph", index)
	}
	d.Blocks = append(d.Blocks[:index], d.Blocks[index+1:]...)
	return nil
}

// Format applies bold/italic to every run whose text contains needle,
// splitting runs so only the matched span is formatted. Returns the number
// of spans formatted.
func (d *Document) Format(needle string, bold, italic bool) int {
	if needle == "" {
		return 0
	}
	count := 0
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Kind != BlockParagraph {
			continue
		}
		var out []Run
		for _, r := range b.Runs {
			rest := r.Text
			for {
				idx := strings.Index(rest, needle)
				if idx < 0 {
					if rest != "" {
						out = append(out, Run{Text: rest, Bold: r.Bold, Italic: r.Italic})
					}
					break
				}
				if idx > 0 {
					out = append(out, Run{Text: rest[:idx], Bold: r.Bold, Italic: r.Italic})
				}
				out = append(out, Run{Text: needle, Bold: bold || r.Bold, Italic: italic || r.Italic})
				count++
				rest = rest[idx+len(needle):]
			}
		}
		b.Runs = out
	}
	return count
}
