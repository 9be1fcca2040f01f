// Package recipients parses free-text recipient input (pasted lists of
// addresses separated by commas, whitespace, or newlines) into normalized
// recipient entries with a best-effort display name and company derived from
// the address itself.
package recipients

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	splitRe = regexp.MustCompile(`[\n,\s]+`)
	digitRe = regexp.MustCompile(`[0-9]`)
	sepRe   = regexp.MustCompile(`[._-]+`)
)

// Entry is a parsed recipient candidate.
type Entry struct {
	Email   string
	Name    string
	Company string
}

// ValidEmail reports whether s looks like an email address. The check is
// deliberately loose; the mailbox provider is the final authority.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// Parse extracts valid, deduplicated recipients from raw input. Addresses
// are lowercased; tokens that do not look like email addresses are dropped.
func Parse(raw string) []Entry {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var entries []Entry

	for _, token := range splitRe.Split(raw, -1) {
		token = strings.TrimSpace(token)
		if token == "" || !ValidEmail(token) {
			continue
		}

		email := strings.ToLower(token)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		entries = append(entries, Entry{
			Email:   email,
			Name:    ExtractName(email),
			Company: ExtractCompany(email),
		})
	}

	return entries
}

// ExtractName derives a display name from the local part of an address:
// digits are stripped, dot/underscore/hyphen separate words, and each word
// is title-cased. Falls back to "There" when nothing usable remains.
func ExtractName(email string) string {
	localPart, _, _ := strings.Cut(email, "@")
	cleaned := digitRe.ReplaceAllString(localPart, "")

	var words []string
	for _, part := range sepRe.Split(cleaned, -1) {
		if part != "" {
			words = append(words, title(part))
		}
	}
	if len(words) == 0 {
		return "There"
	}

	name := strings.TrimSpace(strings.Join(words, " "))
	if name == "" {
		return "There"
	}
	return name
}

// ExtractCompany derives a company name from the first label of the domain.
func ExtractCompany(email string) string {
	_, domain, _ := strings.Cut(email, "@")
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return "Company"
	}
	return title(label)
}

func title(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}
