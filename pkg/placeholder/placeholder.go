package placeholder

import (
	"regexp"
	"slices"
	"strings"
)

// NameKey is the implicit placeholder every template may use without
// declaring a variable definition for it.
const NameKey = "name"

// NameFallback is substituted for {{name}} when the data bag has no value.
const NameFallback = "There"

var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Extract returns the unique lowercase placeholder keys found in text,
// in order of first appearance.
func Extract(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m[1])
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Result reports template problems found by Validate.
type Result struct {
	// UnknownKeys lists placeholders absent from the allow-list. Unknown
	// keys block sending but are only a warning for previews.
	UnknownKeys []string

	// UnmatchedDelimiters is true when the number of opening and closing
	// delimiters differ. This blocks both preview and send.
	UnmatchedDelimiters bool
}

// OK reports whether the template is safe to send.
func (r Result) OK() bool {
	return len(r.UnknownKeys) == 0 && !r.UnmatchedDelimiters
}

// Validate checks text against an allow-list of placeholder keys. The
// implicit "name" key is always allowed; allowed keys are matched
// case-insensitively.
func Validate(text string, allowed []string) Result {
	allowedSet := make(map[string]struct{}, len(allowed)+1)
	allowedSet[NameKey] = struct{}{}
	for _, key := range allowed {
		allowedSet[strings.ToLower(key)] = struct{}{}
	}

	var res Result
	for _, key := range Extract(text) {
		if _, ok := allowedSet[key]; !ok {
			res.UnknownKeys = append(res.UnknownKeys, key)
		}
	}

	res.UnmatchedDelimiters = strings.Count(text, "{{") != strings.Count(text, "}}")
	return res
}

// Render substitutes placeholders in text with values from data. Key lookup
// is case-insensitive on both sides. Missing values render as an empty
// string; a missing "name" renders as NameFallback. Values are inserted raw,
// without HTML escaping.
func Render(text string, data map[string]string) string {
	lowered := make(map[string]string, len(data))
	for key, value := range data {
		lowered[strings.ToLower(key)] = value
	}

	return tokenRe.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.ToLower(tokenRe.FindStringSubmatch(match)[1])
		value := lowered[key]
		if key == NameKey && value == "" {
			return NameFallback
		}
		return value
	})
}
