package recipients_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campaigner/pkg/recipients"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("mixed separators", func(t *testing.T) {
		t.Parallel()

		got := recipients.Parse("ava@acme.com, bob.smith@widgets.io\n carol_j@example.org")
		require.Len(t, got, 3)
		assert.Equal(t, "ava@acme.com", got[0].Email)
		assert.Equal(t, "bob.smith@widgets.io", got[1].Email)
		assert.Equal(t, "carol_j@example.org", got[2].Email)
	})

	t.Run("lowercases and deduplicates", func(t *testing.T) {
		t.Parallel()

		got := recipients.Parse("Ava@Acme.com ava@acme.com")
		require.Len(t, got, 1)
		assert.Equal(t, "ava@acme.com", got[0].Email)
	})

	t.Run("drops invalid tokens", func(t *testing.T) {
		t.Parallel()

		got := recipients.Parse("not-an-email, also@bad, ok@acme.com")
		require.Len(t, got, 1)
		assert.Equal(t, "ok@acme.com", got[0].Email)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, recipients.Parse("  \n "))
	})

	t.Run("derives name and company", func(t *testing.T) {
		t.Parallel()

		got := recipients.Parse("jane.doe42@acme.com")
		require.Len(t, got, 1)
		assert.Equal(t, "Jane Doe", got[0].Name)
		assert.Equal(t, "Acme", got[0].Company)
	})
}

func TestExtractName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email    string
		expected string
	}{
		{"jane.doe@acme.com", "Jane Doe"},
		{"bob_smith-jr@x.io", "Bob Smith Jr"},
		{"JOHN@x.io", "John"},
		{"12345@x.io", "There"},
		{"a1b2@x.io", "Ab"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, recipients.ExtractName(tt.email))
		})
	}
}

func TestExtractCompany(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Acme", recipients.ExtractCompany("jane@acme.com"))
	assert.Equal(t, "Widgets", recipients.ExtractCompany("jane@WIDGETS.co.uk"))
	assert.Equal(t, "Company", recipients.ExtractCompany("jane@"))
}
