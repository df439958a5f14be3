package telegram

import (
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
	"github.com/gomarkdown/markdown/ast"

	"github.com/tgifai/cronturn/internal/pkg/mdtext"
)

// renderEntities flattens markdown into plain text plus Telegram message
// entities. Offsets are in UTF-16 code units.
func renderEntities(md string) (string, []models.MessageEntity) {
	if md == "" {
		return "", nil
	}

	r := &entityRenderer{starts: make(map[ast.Node]int)}
	ast.WalkFunc(mdtext.Parse(md), r.visit)

	sort.SliceStable(r.entities, func(i, j int) bool {
		if r.entities[i].Offset != r.entities[j].Offset {
			return r.entities[i].Offset < r.entities[j].Offset
		}
		return r.entities[i].Length > r.entities[j].Length
	})
	return r.text.String(), r.entities
}

type entityRenderer struct {
	text     strings.Builder
	offset   int
	starts   map[ast.Node]int
	entities []models.MessageEntity
}

func (r *entityRenderer) write(s string) {
	r.text.WriteString(s)
	r.offset += len(utf16.Encode([]rune(s)))
}

func (r *entityRenderer) mark(typ models.MessageEntityType, start int, url, lang string) {
	if r.offset <= start {
		return
	}
	r.entities = append(r.entities, models.MessageEntity{
		Type:     typ,
		Offset:   start,
		Length:   r.offset - start,
		URL:      url,
		Language: lang,
	})
}

// blockGap separates node from its next sibling.
func (r *entityRenderer) blockGap(node ast.Node) {
	if !mdtext.HasNext(node) {
		return
	}
	_, inItem := node.GetParent().(*ast.ListItem)
	switch node.(type) {
	case *ast.ListItem, *ast.TableRow, *ast.TableHeader:
		inItem = true
	}
	if inItem {
		r.write("\n")
		return
	}
	r.write("\n\n")
}

func (r *entityRenderer) visit(node ast.Node, entering bool) ast.WalkStatus {
	if entering {
		r.enter(node)
	} else {
		r.leave(node)
	}
	return ast.GoToNext
}

func (r *entityRenderer) enter(node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		r.write(string(n.Literal))
	case *ast.HTMLSpan:
		r.write(string(n.Literal))
	case *ast.Softbreak, *ast.Hardbreak:
		r.write("\n")
	case *ast.Code:
		start := r.offset
		r.write(string(n.Literal))
		r.mark(models.MessageEntityTypeCode, start, "", "")
	case *ast.CodeBlock:
		start := r.offset
		r.write(strings.TrimRight(string(n.Literal), "\n"))
		r.mark(models.MessageEntityTypePre, start, "", mdtext.CodeLang(n.Info))
		r.blockGap(node)
	case *ast.HTMLBlock:
		r.write(strings.TrimRight(string(n.Literal), "\n"))
		r.blockGap(node)
	case *ast.HorizontalRule:
		r.write("----------")
		r.blockGap(node)
	case *ast.ListItem:
		r.write(mdtext.ListMarker(n, "- "))
	case *ast.TableCell:
		if ast.GetPrevNode(node) != nil {
			r.write(" | ")
		}
	default:
		r.starts[node] = r.offset
	}
}

func (r *entityRenderer) leave(node ast.Node) {
	start := r.starts[node]
	delete(r.starts, node)

	switch n := node.(type) {
	case *ast.Strong:
		r.mark(models.MessageEntityTypeBold, start, "", "")
	case *ast.Emph:
		r.mark(models.MessageEntityTypeItalic, start, "", "")
	case *ast.Del:
		r.mark(models.MessageEntityTypeStrikethrough, start, "", "")
	case *ast.Link:
		if r.offset == start {
			r.write(string(n.Destination))
			return
		}
		r.mark(models.MessageEntityTypeTextLink, start, string(n.Destination), "")
	case *ast.Heading:
		r.mark(models.MessageEntityTypeBold, start, "", "")
		r.blockGap(node)
	case *ast.BlockQuote:
		r.mark(models.MessageEntityTypeBlockquote, start, "", "")
		r.blockGap(node)
	case *ast.Paragraph, *ast.List, *ast.ListItem, *ast.Table, *ast.TableHeader, *ast.TableRow:
		r.blockGap(node)
	}
}
