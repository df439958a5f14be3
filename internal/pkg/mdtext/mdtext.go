// Package mdtext holds the markdown helpers shared by channel renderers.
package mdtext

import (
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

const extensions = parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock |
	parser.Strikethrough | parser.FencedCode | parser.Autolink | parser.Tables

// Parse returns the document tree for md. Parsers are not reusable, so each
// call builds a fresh one.
func Parse(md string) ast.Node {
	return parser.NewWithExtensions(extensions).Parse([]byte(md))
}

// ListMarker returns the bullet for item: "- " for unordered lists and
// "N. " for ordered ones, counting from the list's start number.
func ListMarker(item *ast.ListItem, bullet string) string {
	list, ok := item.GetParent().(*ast.List)
	if !ok || list.ListFlags&ast.ListTypeOrdered == 0 {
		return bullet
	}

	index := list.Start
	if index <= 0 {
		index = 1
	}
	for _, sib := range list.GetChildren() {
		if sib == ast.Node(item) {
			break
		}
		if _, isItem := sib.(*ast.ListItem); isItem {
			index++
		}
	}
	return strconv.Itoa(index) + ". "
}

// CodeLang returns the language tag of a fenced code block info string.
func CodeLang(info []byte) string {
	if f := strings.Fields(string(info)); len(f) > 0 {
		return f[0]
	}
	return ""
}

// PlainText concatenates the text leaves under node.
func PlainText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if t, ok := n.(*ast.Text); ok && entering {
			sb.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}

// HasNext reports whether node has a following sibling.
func HasNext(node ast.Node) bool {
	return ast.GetNextNode(node) != nil
}
