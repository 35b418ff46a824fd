package wordml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// zip entries are capped to keep a hostile docx from exhausting memory
const maxZipEntry = 100 << 20

// Open parses a .docx file into a Document. Only the subset this package
// writes is recovered; unknown markup is dropped.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wordml: open: %w", err)
	}
	return Parse(data)
}

// Parse decodes docx bytes.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("wordml: empty document")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("wordml: open zip: %w", err)
	}

	doc := New()
	rels := map[string]string{} // rel id -> media name

	var docXML []byte
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			docXML, err = readZipEntry(f)
			if err != nil {
				return nil, fmt.Errorf("wordml: read document.xml: %w", err)
			}
		case f.Name == "word/_rels/document.xml.rels":
			relData, err := readZipEntry(f)
			if err != nil {
				return nil, fmt.Errorf("wordml: read rels: %w", err)
			}
			parseRels(relData, rels)
		case strings.HasPrefix(f.Name, "word/media/"):
			media, err := readZipEntry(f)
			if err != nil {
				continue
			}
			doc.Media[strings.TrimPrefix(f.Name, "word/media/")] = media
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("wordml: missing word/document.xml")
	}

	if err := parseBody(docXML, rels, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxZipEntry+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxZipEntry {
		return nil, fmt.Errorf("entry %s exceeds size limit", f.Name)
	}
	return data, nil
}

func parseRels(data []byte, rels map[string]string) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && strings.HasPrefix(target, "media/") {
			rels[id] = strings.TrimPrefix(target, "media/")
		}
	}
}

// bodyParseState tracks the streaming decoder through document.xml.
type bodyParseState struct {
	doc  *Document
	rels map[string]string

	inParagraph bool
	inRun       bool
	style       string
	runs        []Run
	curBold     bool
	curItalic   bool
	sawBreak    bool
	picRelID    string
	picW, picH  int64

	inTable bool
	rows    [][]string
	cells   []string
	cell    strings.Builder
	inCell  bool
}

func parseBody(data []byte, rels map[string]string, doc *Document) error {
	s := &bodyParseState{doc: doc, rels: rels}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("wordml: parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			s.start(t)
		case xml.EndElement:
			s.end(t)
		case xml.CharData:
			s.chars(t)
		}
	}
	return nil
}

func (s *bodyParseState) start(t xml.StartElement) {
	switch t.Name.Local {
	case "p":
		s.inParagraph = true
		s.style = ""
		s.runs = nil
		s.sawBreak = false
		s.picRelID = ""
	case "pStyle":
		for _, a := range t.Attr {
			if a.Name.Local == "val" {
				s.style = a.Value
			}
		}
	case "r":
		s.inRun = true
		s.curBold = false
		s.curItalic = false
	case "b":
		if s.inRun {
			s.curBold = true
		}
	case "i":
		if s.inRun {
			s.curItalic = true
		}
	case "br":
		for _, a := range t.Attr {
			if a.Name.Local == "type" && a.Value == "page" {
				s.sawBreak = true
			}
		}
	case "blip":
		for _, a := range t.Attr {
			if a.Name.Local == "embed" {
				s.picRelID = a.Value
			}
		}
	case "extent":
		for _, a := range t.Attr {
			switch a.Name.Local {
			case "cx":
				fmt.Sscanf(a.Value, "%d", &s.picW)
			case "cy":
				fmt.Sscanf(a.Value, "%d", &s.picH)
			}
		}
	case "tbl":
		s.inTable = true
		s.rows = nil
	case "tr":
		s.cells = nil
	case "tc":
		s.inCell = true
		s.cell.Reset()
	}
}

func (s *bodyParseState) end(t xml.EndElement) {
	switch t.Name.Local {
	case "r":
		s.inRun = false
	case "tc":
		s.inCell = false
		s.cells = append(s.cells, strings.TrimSpace(s.cell.String()))
	case "tr":
		s.rows = append(s.rows, s.cells)
	case "tbl":
		s.inTable = false
		if len(s.rows) > 0 {
			s.doc.Blocks = append(s.doc.Blocks, Block{Kind: BlockTable, Rows: s.rows})
		}
	case "p":
		s.endParagraph()
	}
}

func (s *bodyParseState) chars(data xml.CharData) {
	if s.inCell {
		s.cell.Write(data)
		return
	}
	if s.inParagraph && s.inRun && !s.inTable {
		s.runs = append(s.runs, Run{Text: string(data), Bold: s.curBold, Italic: s.curItalic})
	}
}

func (s *bodyParseState) endParagraph() {
	s.inParagraph = false
	if s.inTable {
		return
	}
	switch {
	case s.picRelID != "":
		name := s.rels[s.picRelID]
		if name != "" {
			s.doc.Blocks = append(s.doc.Blocks, Block{
				Kind:      BlockPicture,
				ImageName: name,
				WidthEMU:  s.picW,
				HeightEMU: s.picH,
			})
		}
	case s.sawBreak:
		s.doc.Blocks = append(s.doc.Blocks, Block{Kind: BlockPageBreak})
	default:
		// coalesce adjacent runs with identical formatting
		var runs []Run
		for _, r := range s.runs {
			if n := len(runs); n > 0 && runs[n-1].Bold == r.Bold && runs[n-1].Italic == r.Italic {
				runs[n-1].Text += r.Text
				continue
			}
			runs = append(runs, r)
		}
		if len(runs) == 0 && s.style == "" {
			return
		}
		s.doc.Blocks = append(s.doc.Blocks, Block{Kind: BlockParagraph, Style: s.style, Runs: runs})
	}
}
