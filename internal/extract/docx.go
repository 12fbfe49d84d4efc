package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
)

const (
	nsWordML        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// DOCXExtractor collects body paragraphs, then table cells, then the
// header and footer paragraphs of every section. Any failure is logged
// and yields an empty string.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(ctx context.Context, p string) (string, error) {
	text, err := extractDOCX(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Printf("docx: failed to extract text from %s, continuing with empty text: %v", p, err)
		return "", nil
	}
	return text, nil
}

func extractDOCX(ctx context.Context, p string) (text string, err error) {
	defer recoverParse("docx", &err)

	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	doc, err := parsePart(files, "word/document.xml")
	if err != nil {
		return "", err
	}
	body := doc.child(nsWordML, "body")
	if body == nil {
		return "", errors.New("document has no body")
	}

	var parts []string
	for _, para := range body.children(nsWordML, "p") {
		if t := paragraphText(para); t != "" {
			parts = append(parts, t)
		}
	}

	for _, tbl := range body.children(nsWordML, "tbl") {
		parts = append(parts, tableCellTexts(tbl)...)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rels, err := documentRelationships(files)
	if err != nil {
		return "", err
	}
	var header, footer string
	for _, sect := range sectionProperties(body) {
		if id := defaultReference(sect, "headerReference"); id != "" {
			header = rels[id]
		}
		if id := defaultReference(sect, "footerReference"); id != "" {
			footer = rels[id]
		}
		for _, target := range []string{header, footer} {
			if target == "" {
				continue
			}
			part, err := parsePart(files, target)
			if err != nil {
				return "", err
			}
			for _, para := range part.children(nsWordML, "p") {
				if t := paragraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// xmlNode is a minimal element tree; only the text of w:t elements is kept.
type xmlNode struct {
	name     xml.Name
	attrs    []xml.Attr
	nodes    []*xmlNode
	charData strings.Builder
}

func (n *xmlNode) attr(space, local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local && (space == "" || a.Name.Space == space) {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(space, local string) *xmlNode {
	for _, c := range n.nodes {
		if c.name.Space == space && c.name.Local == local {
			return c
		}
	}
	return nil
}

func (n *xmlNode) children(space, local string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.nodes {
		if c.name.Space == space && c.name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

func parsePart(files map[string]*zip.File, name string) (*xmlNode, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()

	root, err := parseXML(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse part %s: %w", name, err)
	}
	return root, nil
}

func parseXML(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	var stack []*xmlNode
	var root *xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.nodes = append(parent.nodes, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.name.Space == nsWordML && top.name.Local == "t" {
					top.charData.Write(t)
				}
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty xml document")
	}
	return root, nil
}

// paragraphText concatenates the runs of a paragraph, including runs inside hyperlinks.
func paragraphText(p *xmlNode) string {
	var sb strings.Builder
	for _, c := range p.nodes {
		if c.name.Space != nsWordML {
			continue
		}
		switch c.name.Local {
		case "r":
			writeRun(&sb, c)
		case "hyperlink":
			for _, r := range c.children(nsWordML, "r") {
				writeRun(&sb, r)
			}
		}
	}
	return sb.String()
}

func writeRun(sb *strings.Builder, run *xmlNode) {
	for _, c := range run.nodes {
		if c.name.Space != nsWordML {
			continue
		}
		switch c.name.Local {
		case "t":
			sb.WriteString(c.charData.String())
		case "tab":
			sb.WriteString("\t")
		case "br", "cr":
			sb.WriteString("\n")
		}
	}
}

// tableCellTexts walks rows then cells; a cell spanning several grid
// columns is reported once per column.
func tableCellTexts(tbl *xmlNode) []string {
	var out []string
	for _, row := range tbl.children(nsWordML, "tr") {
		for _, cell := range row.children(nsWordML, "tc") {
			paras := cell.children(nsWordML, "p")
			lines := make([]string, 0, len(paras))
			for _, para := range paras {
				lines = append(lines, paragraphText(para))
			}
			text := strings.Join(lines, "\n")
			if text == "" {
				continue
			}
			for i := 0; i < gridSpan(cell); i++ {
				out = append(out, text)
			}
		}
	}
	return out
}

func gridSpan(cell *xmlNode) int {
	props := cell.child(nsWordML, "tcPr")
	if props == nil {
		return 1
	}
	span := props.child(nsWordML, "gridSpan")
	if span == nil {
		return 1
	}
	var n int
	if _, err := fmt.Sscanf(span.attr(nsWordML, "val"), "%d", &n); err != nil || n < 1 {
		return 1
	}
	return n
}

// sectionProperties returns every w:sectPr in document order: those
// closing a section inside paragraph properties, then the body's last one.
func sectionProperties(body *xmlNode) []*xmlNode {
	var out []*xmlNode
	for _, c := range body.nodes {
		if c.name.Space != nsWordML {
			continue
		}
		switch c.name.Local {
		case "p":
			if ppr := c.child(nsWordML, "pPr"); ppr != nil {
				if sect := ppr.child(nsWordML, "sectPr"); sect != nil {
					out = append(out, sect)
				}
			}
		case "sectPr":
			out = append(out, c)
		}
	}
	return out
}

func defaultReference(sect *xmlNode, kind string) string {
	for _, ref := range sect.children(nsWordML, kind) {
		if t := ref.attr(nsWordML, "type"); t == "" || t == "default" {
			return ref.attr(nsRelationships, "id")
		}
	}
	return ""
}

// documentRelationships maps relationship ids of document.xml to part names.
func documentRelationships(files map[string]*zip.File) (map[string]string, error) {
	rels := make(map[string]string)
	if _, ok := files["word/_rels/document.xml.rels"]; !ok {
		return rels, nil
	}
	root, err := parsePart(files, "word/_rels/document.xml.rels")
	if err != nil {
		return nil, err
	}
	for _, rel := range root.children(nsPackageRels, "Relationship") {
		id := rel.attr("", "Id")
		target := rel.attr("", "Target")
		if id == "" || target == "" || rel.attr("", "TargetMode") == "External" {
			continue
		}
		if strings.HasPrefix(target, "/") {
			rels[id] = strings.TrimPrefix(target, "/")
		} else {
			rels[id] = path.Join("word", target)
		}
	}
	return rels, nil
}
