package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "semicolon",
			in:   "I'm; Batman",
			want: []Segment{{Text: "I'm", Italic: true}, {Text: " Batman"}},
		},
		{
			name: "comma fallback",
			in:   "Hello, World",
			want: []Segment{{Text: "Hello", Italic: true}, {Text: " World"}},
		},
		{
			name: "no delimiter",
			in:   "No delimiter here",
			want: []Segment{{Text: "No delimiter here"}},
		},
		{
			name: "semicolon with empty rest",
			in:   "Solo;",
			want: []Segment{{Text: "Solo", Italic: true}},
		},
		{
			name: "semicolon wins over comma",
			in:   "Well, yes; indeed",
			want: []Segment{{Text: "Well, yes", Italic: true}, {Text: " indeed"}},
		},
		{
			name: "leading semicolon falls through to comma",
			in:   ";a, b",
			want: []Segment{{Text: ";a", Italic: true}, {Text: " b"}},
		},
		{
			name: "leading semicolon without comma",
			in:   ";abc",
			want: []Segment{{Text: ";abc"}},
		},
		{
			name: "second semicolon stays in rest",
			in:   "a; b; c",
			want: []Segment{{Text: "a", Italic: true}, {Text: " b; c"}},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestHTML(t *testing.T) {
	got := string(HTML(Format("Hello; World")))
	assert.Equal(t, "<em>Hello</em> World", got)
}

func TestHTML_Escapes(t *testing.T) {
	got := string(HTML(Format("<b>bold</b>; & *more*")))
	assert.True(t, strings.HasPrefix(got, "<em>&lt;b&gt;bold&lt;/b&gt;</em>"), got)
	assert.Contains(t, got, "&amp; *more*")
	assert.NotContains(t, got, "<b>")
}

func TestPlain(t *testing.T) {
	assert.Equal(t, "I'm Batman", Plain(Format("I'm; Batman")))
}
