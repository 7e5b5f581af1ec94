// Package htmltext converts the HTML fragments returned by the wiki API
// (search snippets, parsed page text) into plain or lightly marked-up text.
package htmltext

import (
	"html"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

const matchClass = "searchmatch"

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "table": true, "blockquote": true,
	"dd": true, "dt": true, "section": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
}

// классы служебных блоков MediaWiki, текст которых читателю не нужен
var skipClasses = []string{"mw-editsection", "reference", "mw-references-wrap", "navbox", "metadata"}

type spanKind int

const (
	spanPlain spanKind = iota
	spanMatch
	spanSkip
)

// Text returns the visible text of an HTML fragment with whitespace collapsed.
func Text(s string) string {
	return render(s, "", "", false)
}

// Highlight returns an HTML-escaped rendition of a search snippet where every
// searchmatch span is wrapped in open/close. All other markup is dropped.
func Highlight(s, open, close string) string {
	return render(s, open, close, true)
}

// Truncate cuts s to at most max runes, adding an ellipsis when it had to cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:max-1]), " ")
	return cut + "…"
}

func render(s, open, close string, escape bool) string {
	z := xhtml.NewTokenizer(strings.NewReader(s))

	var sb strings.Builder
	var stack []elem
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			// io.EOF или битая разметка: отдаём то, что успели собрать
			return collapse(sb.String())

		case xhtml.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := string(z.Text())
			if escape {
				text = html.EscapeString(text)
			}
			sb.WriteString(text)

		case xhtml.StartTagToken:
			tok := z.Token()
			kind := classify(tok)
			if isVoid(tok.Data) {
				if blockTags[tok.Data] && skipDepth == 0 {
					sb.WriteByte(' ')
				}
				continue
			}
			stack = append(stack, elem{tag: tok.Data, kind: kind})
			switch {
			case kind == spanSkip:
				skipDepth++
			case skipDepth > 0:
			case kind == spanMatch:
				sb.WriteString(open)
			case blockTags[tok.Data]:
				sb.WriteByte(' ')
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			// ищем ближайший открытый элемент с таким тегом
			i := len(stack) - 1
			for i >= 0 && stack[i].tag != tag {
				i--
			}
			if i < 0 {
				continue
			}
			for j := len(stack) - 1; j >= i; j-- {
				e := stack[j]
				switch {
				case e.kind == spanSkip:
					skipDepth--
				case skipDepth > 0:
				case e.kind == spanMatch:
					sb.WriteString(close)
				case blockTags[e.tag]:
					sb.WriteByte(' ')
				}
			}
			stack = stack[:i]

		case xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] && skipDepth == 0 {
				sb.WriteByte(' ')
			}
		}
	}
}

type elem struct {
	tag  string
	kind spanKind
}

func classify(tok xhtml.Token) spanKind {
	if skipTags[tok.Data] {
		return spanSkip
	}
	for _, a := range tok.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if cls == matchClass {
				return spanMatch
			}
			for _, sc := range skipClasses {
				if cls == sc {
					return spanSkip
				}
			}
		}
	}
	return spanPlain
}

func isVoid(tag string) bool {
	switch tag {
	case "br", "img", "hr", "input", "meta", "link", "wbr", "area", "col", "source":
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
