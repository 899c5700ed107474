// Package security cleans admin supplied content before it is stored and
// later served to mail clients from the public signature endpoint.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans the two kinds of admin input: plain profile text and
// signature template markup.
type Sanitizer interface {
	// Text strips all markup from a single profile field.
	Text(s string) string
	// HTML keeps signature layout markup and drops anything executable.
	HTML(s string) string
}

type sanitizer struct {
	text *bluemonday.Policy
	html *bluemonday.Policy
}

// Placeholder names substituted at render time.
var placeholders = []string{"FullName", "Title", "Department", "Company", "Phone", "Extension"}

// The policy percent-encodes braces inside URLs, so placeholders are swapped
// for URL-safe markers while the markup is sanitised.
var (
	hidePlaceholders    *strings.Replacer
	restorePlaceholders *strings.Replacer
)

func init() {
	var hide, restore []string
	for _, name := range placeholders {
		marker := "mailsig-placeholder-" + name + "-7f3a"
		hide = append(hide, "{{"+name+"}}", marker)
		restore = append(restore, marker, "{{"+name+"}}")
	}
	hidePlaceholders = strings.NewReplacer(hide...)
	restorePlaceholders = strings.NewReplacer(restore...)
}

// NewSanitizer builds the policies once; the result is safe for concurrent use.
func NewSanitizer() Sanitizer {
	return &sanitizer{
		text: bluemonday.StrictPolicy(),
		html: signaturePolicy(),
	}
}

// signaturePolicy allows the table based layouts and inline styling that
// mail clients render. Scripts, frames, forms and on* handlers are dropped.
func signaturePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"div", "span", "p", "br", "hr",
		"b", "i", "u", "strong", "em", "small", "font",
		"table", "thead", "tbody", "tr", "td", "th",
		"ul", "ol", "li",
		"h1", "h2", "h3", "h4",
	)
	p.AllowAttrs("style", "class", "align", "valign", "width", "height", "bgcolor").Globally()
	p.AllowAttrs("cellpadding", "cellspacing", "border", "role").OnElements("table")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowAttrs("color", "face", "size").OnElements("font")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowURLSchemes("https", "http", "mailto", "tel", "cid")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return p
}

// Text returns plain, unescaped text. Escaping happens when it is rendered.
func (s *sanitizer) Text(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.text.Sanitize(in)))
}

func (s *sanitizer) HTML(in string) string {
	return restorePlaceholders.Replace(s.html.Sanitize(hidePlaceholders.Replace(in)))
}
