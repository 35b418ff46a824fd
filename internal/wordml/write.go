package wordml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Default Extension="jpg" ContentType="image/jpeg"/>
<Default Extension="gif" ContentType="image/gif"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// stylesXML declares Heading1-5 so Word renders headings at sensible sizes.
const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading5"><w:name w:val="heading 5"/><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>
</w:styles>`

// Save writes the document as a .docx at path.
func (d *Document) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("wordml: save: %w", err)
	}
	var buf bytes.Buffer
	if err := d.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("wordml: save: %w", err)
	}
	return nil
}

// WriteTo serializes the docx package to w.
func (d *Document) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	names := make([]string, 0, len(d.Media))
	for name := range d.Media {
		names = append(names, name)
	}
	sort.Strings(names)
	relIDs := map[string]string{} // media name -> rel id
	for i, name := range names {
		relIDs[name] = fmt.Sprintf("rId%d", i+2)
	}

	entries := map[string]string{
		"[Content_Types].xml":          contentTypesXML,
		"_rels/.rels":                  rootRelsXML,
		"word/styles.xml":              stylesXML,
		"word/document.xml":            d.documentXML(relIDs),
		"word/_rels/document.xml.rels": documentRelsXML(relIDs),
	}
	for name, content := range entries {
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("wordml: zip %s: %w", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			return fmt.Errorf("wordml: zip %s: %w", name, err)
		}
	}
	for name, data := range d.Media {
		fw, err := zw.Create("word/media/" + name)
		if err != nil {
			return fmt.Errorf("wordml: zip media %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("wordml: zip media %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("wordml: close zip: %w", err)
	}
	return nil
}

func documentRelsXML(relIDs map[string]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n")
	sb.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` + "\n")
	names := make([]string, 0, len(relIDs))
	for name := range relIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`+"\n", relIDs[name], name))
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

func (d *Document) documentXML(relIDs map[string]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` + "\n")
	sb.WriteString("<w:body>\n")
	for _, b := range d.Blocks {
		switch b.Kind {
		case BlockParagraph:
			writeParagraph(&sb, &b)
		case BlockTable:
			writeTable(&sb, &b)
		case BlockPicture:
			writePicture(&sb, &b, relIDs[b.ImageName])
		case BlockPageBreak:
			sb.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>` + "\n")
		}
	}
	sb.WriteString("</w:body>\n</w:document>")
	return sb.String()
}

func writeParagraph(sb *strings.Builder, b *Block) {
	sb.WriteString("<w:p>")
	if b.Style != "" {
		sb.WriteString(fmt.Sprintf(`<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, b.Style))
	}
	for _, r := range b.Runs {
		sb.WriteString("<w:r>")
		if r.Bold || r.Italic {
			sb.WriteString("<w:rPr>")
			if r.Bold {
				sb.WriteString("<w:b/>")
			}
			if r.Italic {
				sb.WriteString("<w:i/>")
			}
			sb.WriteString("</w:rPr>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(sb, []byte(r.Text))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>\n")
}

func writeTable(sb *strings.Builder, b *Block) {
	sb.WriteString(`<w:tbl><w:tblPr><w:tblBorders>` +
		`<w:top w:val="single" w:sz="4"/><w:bottom w:val="single" w:sz="4"/>` +
		`<w:left w:val="single" w:sz="4"/><w:right w:val="single" w:sz="4"/>` +
		`<w:insideH w:val="single" w:sz="4"/><w:insideV w:val="single" w:sz="4"/>` +
		`</w:tblBorders></w:tblPr>` + "\n")
	for i, row := range b.Rows {
		sb.WriteString("<w:tr>")
		for _, cell := range row {
			sb.WriteString("<w:tc><w:p><w:r>")
			if i == 0 {
				sb.WriteString("<w:rPr><w:b/></w:rPr>")
			}
			sb.WriteString(`<w:t xml:space="preserve">`)
			xml.EscapeText(sb, []byte(cell))
			sb.WriteString("</w:t></w:r></w:p></w:tc>")
		}
		sb.WriteString("</w:tr>\n")
	}
	sb.WriteString("</w:tbl>\n")
}

func writePicture(sb *strings.Builder, b *Block, relID string) {
	if relID == "" {
		return
	}
	w, h := b.WidthEMU, b.HeightEMU
	if w <= 0 {
		w = 5486400 // 6 in
	}
	if h <= 0 {
		h = 3657600 // 4 in
	}
	sb.WriteString(fmt.Sprintf(`<w:p><w:r><w:drawing><wp:inline><wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="1" name="%s"/><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="1" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`+"\n",
		w, h, b.ImageName, b.ImageName, relID, w, h))
}
