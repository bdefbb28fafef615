// Package markdown inspects Markdown input: it classifies document layout for
// style analysis and reduces text to plain prose for language detection.
package markdown

import (
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Structure labels returned by Classify.
const (
	StructureEmpty      = "empty"
	StructureParagraphs = "paragraphs"
	StructureList       = "list"
	StructureSectioned  = "sectioned"
	StructureMixed      = "mixed"
)

// Outline counts the top-level blocks of a document.
type Outline struct {
	Headings    int
	Paragraphs  int
	Lists       int
	CodeBlocks  int
	Tables      int
	BlockQuotes int
}

func parse(md []byte) ast.Node {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	return p.Parse(md)
}

// Inspect counts the document's top-level blocks. Nested blocks such as
// paragraphs inside list items are not counted.
func Inspect(md []byte) Outline {
	var o Outline
	for _, child := range parse(md).GetChildren() {
		switch child.(type) {
		case *ast.Heading:
			o.Headings++
		case *ast.Paragraph:
			o.Paragraphs++
		case *ast.List:
			o.Lists++
		case *ast.CodeBlock:
			o.CodeBlocks++
		case *ast.Table:
			o.Tables++
		case *ast.BlockQuote:
			o.BlockQuotes++
		}
	}
	return o
}

// Structure classifies the layout of md.
func Structure(md []byte) string {
	return Inspect(md).Classify()
}

func (o Outline) Classify() string {
	other := o.CodeBlocks + o.Tables + o.BlockQuotes
	switch {
	case o.Headings+o.Paragraphs+o.Lists+other == 0:
		return StructureEmpty
	case o.Headings > 0:
		return StructureSectioned
	case o.Lists > 0 && o.Paragraphs == 0 && other == 0:
		return StructureList
	case o.Lists > 0 || other > 0:
		return StructureMixed
	}
	return StructureParagraphs
}

func ToHTML(md []byte) string {
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return string(markdown.Render(parse(md), renderer))
}

// ToPlainText renders md and drops all markup, leaving readable text.
func ToPlainText(md []byte) string {
	return strings.TrimSpace(html.UnescapeString(StripHTMLTags(ToHTML(md))))
}

func StripHTMLTags(htmlContent string) string {
	var b strings.Builder
	inTag := false
	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				b.WriteRune(ch)
			}
		}
	}
	return b.String()
}
