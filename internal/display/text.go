// Package display formats the gallery's headline text.
//
// A headline may carry one ";" delimiter: the part before it is italic, the
// rest normal. Without a delimiter, an "A, B" headline italicizes A.
// Anything else renders unstyled.
package display

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
)

// Segment is a run of headline text with a single style.
type Segment struct {
	Text   string `json:"text"`
	Italic bool   `json:"italic,omitempty"`
}

var commaPattern = regexp.MustCompile(`^(.+?),\s*(.+)$`)

// Format splits a headline into styled segments. It has no side effects.
func Format(text string) []Segment {
	if idx := strings.Index(text, ";"); idx > 0 {
		italic := strings.TrimSpace(text[:idx])
		rest := strings.TrimSpace(text[idx+1:])
		segs := []Segment{{Text: italic, Italic: true}}
		if rest != "" {
			segs = append(segs, Segment{Text: " " + rest})
		}
		return segs
	}

	if m := commaPattern.FindStringSubmatch(text); m != nil {
		return []Segment{
			{Text: m[1], Italic: true},
			{Text: " " + m[2]},
		}
	}

	if text == "" {
		return nil
	}
	return []Segment{{Text: text}}
}

var md = goldmark.New()

// HTML renders segments as inline HTML, italic runs wrapped in <em>.
// Segment text is escaped; markdown syntax in it is not interpreted.
func HTML(segs []Segment) template.HTML {
	doc := ast.NewDocument()
	for _, s := range segs {
		str := ast.NewString([]byte(s.Text))
		str.SetRaw(true)
		if s.Italic {
			em := ast.NewEmphasis(1)
			em.AppendChild(em, str)
			doc.AppendChild(doc, em)
			continue
		}
		doc.AppendChild(doc, str)
	}

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, nil, doc); err != nil {
		return template.HTML(template.HTMLEscapeString(Plain(segs)))
	}
	return template.HTML(buf.String())
}

// Plain joins segments without styling.
func Plain(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
