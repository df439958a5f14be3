package lark

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"

	"github.com/tgifai/cronturn/internal/pkg/mdtext"
)

// postElement is one inline element of a Lark post paragraph.
type postElement = map[string]any

// markdownToPost renders markdown as the paragraph list of a Lark post.
func markdownToPost(md string) [][]postElement {
	if md == "" {
		return nil
	}
	w := &postWriter{}
	ast.WalkFunc(mdtext.Parse(md), w.visit)
	w.endLine()
	return w.lines
}

type postWriter struct {
	lines  [][]postElement
	line   []postElement
	styles []string
}

func (w *postWriter) endLine() {
	if len(w.line) > 0 {
		w.lines = append(w.lines, w.line)
		w.line = nil
	}
}

func (w *postWriter) text(s string) {
	if s == "" {
		return
	}
	el := postElement{"tag": "text", "text": s}
	if len(w.styles) > 0 {
		seen := make(map[string]struct{}, len(w.styles))
		uniq := make([]string, 0, len(w.styles))
		for _, st := range w.styles {
			if _, dup := seen[st]; !dup {
				seen[st] = struct{}{}
				uniq = append(uniq, st)
			}
		}
		el["style"] = uniq
	}
	w.line = append(w.line, el)
}

// block appends a standalone paragraph holding a single element.
func (w *postWriter) block(el postElement) {
	w.endLine()
	w.lines = append(w.lines, []postElement{el})
}

func styleOf(node ast.Node) string {
	switch node.(type) {
	case *ast.Strong, *ast.Heading:
		return "bold"
	case *ast.Emph, *ast.BlockQuote:
		return "italic"
	case *ast.Del:
		return "lineThrough"
	}
	return ""
}

func (w *postWriter) visit(node ast.Node, entering bool) ast.WalkStatus {
	if style := styleOf(node); style != "" {
		if entering {
			w.styles = append(w.styles, style)
		} else {
			w.styles = w.styles[:len(w.styles)-1]
			if _, ok := node.(*ast.Heading); ok {
				w.endLine()
			}
		}
		return ast.GoToNext
	}

	if !entering {
		switch node.(type) {
		case *ast.Paragraph, *ast.ListItem, *ast.TableRow:
			w.endLine()
		}
		return ast.GoToNext
	}

	switch n := node.(type) {
	case *ast.Text:
		w.text(string(n.Literal))
	case *ast.HTMLSpan:
		w.text(string(n.Literal))
	case *ast.Softbreak, *ast.Hardbreak:
		w.text("\n")
	case *ast.Code:
		// post has no inline code style
		w.styles = append(w.styles, "underline")
		w.text(string(n.Literal))
		w.styles = w.styles[:len(w.styles)-1]
	case *ast.CodeBlock:
		el := postElement{"tag": "code_block", "text": strings.TrimRight(string(n.Literal), "\n")}
		if lang := mdtext.CodeLang(n.Info); lang != "" {
			el["language"] = lang
		}
		w.block(el)
	case *ast.HorizontalRule:
		w.block(postElement{"tag": "hr"})
	case *ast.HTMLBlock:
		w.text(strings.TrimRight(string(n.Literal), "\n"))
		w.endLine()
	case *ast.Link:
		label := mdtext.PlainText(n)
		if label == "" {
			label = string(n.Destination)
		}
		w.line = append(w.line, postElement{"tag": "a", "text": label, "href": string(n.Destination)})
		return ast.SkipChildren
	case *ast.ListItem:
		w.text(mdtext.ListMarker(n, "• "))
	case *ast.TableCell:
		if ast.GetPrevNode(node) != nil {
			w.text(" | ")
		}
	}
	return ast.GoToNext
}
