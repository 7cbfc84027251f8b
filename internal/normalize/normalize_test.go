package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain passthrough", "  duplicate of an existing record  ", "duplicate of an existing record"},
		{"empty", "", ""},
		{"paragraph", "<p>Duplicate record</p>", "Duplicate record"},
		{"emphasis removed", "<p><strong>Duplicate</strong> of <em>US2021250D1DTN7</em></p>", "Duplicate of US2021250D1DTN7"},
		{"link keeps text", `<p>See <a href="https://example.com">this facility</a></p>`, "See this facility"},
		{"list bullets removed", "<ul><li>wrong address</li><li>closed</li></ul>", "wrong address\nclosed"},
		{"typed punctuation kept", "<p>snake_case *starred* ~tilde~ `tick` back\\slash</p>", "snake_case *starred* ~tilde~ `tick` back\\slash"},
		{"entities decoded", "<p>A &amp; B &lt;C&gt;&nbsp;D</p>", "A & B <C>\u00a0D"},
		{"line breaks", "<p>one<br>two</p><p></p>", "one\ntwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlainText(tt.input))
		})
	}
}

func TestPlainText_MarkupDoesNotCount(t *testing.T) {
	html := "<p><strong>" + "abcdefghij" + "</strong></p>"
	assert.Equal(t, 10, NonWhitespaceLen(PlainText(html)))
}

func TestPlainText_CountsVisibleCharacters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"trailing underscore", "<p>" + strings.Repeat("a", 29) + "_</p>", 30},
		{"asterisks", "<p>" + strings.Repeat("a", 28) + "**</p>", 30},
		{"escaped entities", "<p>" + strings.Repeat("a", 27) + "&amp;&lt;&gt;</p>", 30},
		{"entities under the limit", "<p>" + strings.Repeat("a", 26) + "&amp;&lt;&gt;</p>", 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NonWhitespaceLen(PlainText(tt.input)))
		})
	}
}

func TestMarkdown(t *testing.T) {
	assert.Equal(t, "plain", Markdown(" plain "))
	assert.Equal(t, "**Duplicate** record", Markdown("<p><strong>Duplicate</strong> record</p>"))
	assert.Equal(t, "See [this facility](https://example.com)",
		Markdown(`<p>See <a href="https://example.com">this facility</a></p>`))
}

func TestNonWhitespaceLen(t *testing.T) {
	assert.Equal(t, 0, NonWhitespaceLen(""))
	assert.Equal(t, 0, NonWhitespaceLen(" \t\n "))
	assert.Equal(t, 6, NonWhitespaceLen("ab cd\tef"))
	assert.Equal(t, 3, NonWhitespaceLen("é è ê"))
}

func TestField(t *testing.T) {
	assert.Equal(t, "Test Name", Field("  Test   Name "))
	assert.Equal(t, "", Field("   "))
}

func TestCountryCode(t *testing.T) {
	assert.Equal(t, "US", CountryCode(" us "))
}

func TestFoldKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Café  Textiles", "cafe textiles"},
		{"ÜBER Garments", "uber garments"},
		{"  Plain ", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldKey(tt.input))
		})
	}
}
