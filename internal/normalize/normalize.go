// Package normalize provides utilities for normalizing and sanitizing contributed text.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	// htmlTagPattern matches the tags the rich-text editor emits.
	htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|u|s|strong|em|a|ul|ol|li|h[1-6]|blockquote|code|pre)[\s>/]`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// blockElements end a line of text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// containsHTML reports whether s looks like rich-text editor output.
func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// PlainText returns the text content of rich-text editor HTML, one line per block.
// Entities are decoded and everything the author typed is kept. Input without markup
// is returned trimmed.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !containsHTML(s) {
		return s
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return stripTags(s)
	}

	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return joinLines(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && blockElements[n.DataAtom] {
		b.WriteByte('\n')
	}
}

func joinLines(s string) string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = Field(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Markdown renders rich-text editor HTML as Markdown, keeping lists and link targets.
// Input without markup is returned trimmed.
func Markdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !containsHTML(s) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return PlainText(s)
	}
	return strings.TrimSpace(markdown)
}

// NonWhitespaceLen counts the characters of s that are not whitespace.
func NonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Field trims a form value and collapses internal whitespace runs to one space.
func Field(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CountryCode canonicalizes a country selector value ("us " -> "US").
func CountryCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// FoldKey produces an accent- and case-insensitive key for sorting and matching.
// "Café  Textiles" -> "cafe textiles".
func FoldKey(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return Field(s)
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return Field(html.UnescapeString(b.String()))
}
