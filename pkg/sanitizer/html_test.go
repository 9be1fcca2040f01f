package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/campaigner/pkg/sanitizer"
)

func TestSanitizeEmailHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips script tags",
			input:    `<p>Hello</p><script>alert('xss')</script>`,
			expected: `<p>Hello</p>`,
		},
		{
			name:     "strips event handlers",
			input:    `<p onclick="steal()">Hello</p>`,
			expected: `<p>Hello</p>`,
		},
		{
			name:     "keeps formatting markup",
			input:    `<h1>Hi</h1><p><strong>bold</strong> and <em>italic</em></p>`,
			expected: `<h1>Hi</h1><p><strong>bold</strong> and <em>italic</em></p>`,
		},
		{
			name:     "strips javascript urls",
			input:    `<a href="javascript:alert(1)">click</a>`,
			expected: `click`,
		},
		{
			name:     "keeps https links",
			input:    `<a href="https://example.com">site</a>`,
			expected: `<a href="https://example.com">site</a>`,
		},
		{
			name:     "placeholders pass through",
			input:    `<p>Hi {{name}}, welcome to {{company}}</p>`,
			expected: `<p>Hi {{name}}, welcome to {{company}}</p>`,
		},
		{
			name:     "strips iframes",
			input:    `<iframe src="https://evil.example"></iframe><p>ok</p>`,
			expected: `<p>ok</p>`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, sanitizer.SanitizeEmailHTML(tt.input))
		})
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello world", sanitizer.StripHTML(`<p>Hello <b>world</b></p>`))
	assert.Equal(t, "Hi {{name}}", sanitizer.StripHTML(`Hi {{name}}`))
}
