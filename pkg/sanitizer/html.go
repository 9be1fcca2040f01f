// Package sanitizer strips dangerous markup from campaign bodies before they
// are stored. The template engine inserts personalization values without
// escaping, so sanitizing at the storage boundary is what keeps scripts and
// event handlers out of outgoing mail.
package sanitizer

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	emailPolicy *bluemonday.Policy
	textPolicy  *bluemonday.Policy
	initOnce    sync.Once
)

func initPolicies() {
	initOnce.Do(func() {
		// textPolicy strips ALL HTML, returns plain text
		textPolicy = bluemonday.StrictPolicy()

		// emailPolicy allows the markup rich-text email editors emit
		emailPolicy = bluemonday.NewPolicy()
		emailPolicy.AllowStandardURLs()
		emailPolicy.AllowElements(
			"p", "br", "div", "span",
			"h1", "h2", "h3", "h4",
			"strong", "b", "em", "i", "u", "s",
			"ul", "ol", "li",
			"code", "pre", "blockquote", "hr",
			"table", "thead", "tbody", "tr", "td", "th",
		)
		emailPolicy.AllowAttrs("href").OnElements("a")
		emailPolicy.AllowImages()
		emailPolicy.AllowAttrs("style").OnElements("p", "span", "div", "td")
	})
}

// SanitizeEmailHTML keeps the formatting tags email editors produce and
// strips everything dangerous: scripts, iframes, event handlers, and
// javascript: URLs. Template placeholders pass through untouched because
// they contain no markup.
func SanitizeEmailHTML(s string) string {
	initPolicies()
	return emailPolicy.Sanitize(s)
}

// StripHTML removes all HTML, returning plain text. Used for subjects and
// display names that must never carry markup.
func StripHTML(s string) string {
	initPolicies()
	return textPolicy.Sanitize(s)
}
