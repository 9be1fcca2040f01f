package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGroupRecipients(t *testing.T) {
	t.Parallel()

	t.Run("lowercases and dedupes emails", func(t *testing.T) {
		t.Parallel()

		clean := normalizeGroupRecipients([]recipientInput{
			{Email: " Ava@Acme.com ", Name: "Ava"},
			{Email: "ava@acme.com", Name: "Duplicate"},
			{Email: "bob@acme.com", Name: "Bob"},
		})

		require.Len(t, clean, 2)
		assert.Equal(t, "ava@acme.com", clean[0].Email)
		assert.Equal(t, "Ava", clean[0].Name)
		assert.Equal(t, "bob@acme.com", clean[1].Email)
	})

	t.Run("drops invalid emails", func(t *testing.T) {
		t.Parallel()

		clean := normalizeGroupRecipients([]recipientInput{
			{Email: "not-an-email"},
			{Email: ""},
			{Email: "ok@acme.com"},
		})

		require.Len(t, clean, 1)
		assert.Equal(t, "ok@acme.com", clean[0].Email)
	})

	t.Run("derives a name from the address", func(t *testing.T) {
		t.Parallel()

		clean := normalizeGroupRecipients([]recipientInput{
			{Email: "ava.smith@acme.com"},
		})

		require.Len(t, clean, 1)
		assert.Equal(t, "Ava Smith", clean[0].Name)
	})

	t.Run("strips markup from names", func(t *testing.T) {
		t.Parallel()

		clean := normalizeGroupRecipients([]recipientInput{
			{Email: "ava@acme.com", Name: "<b>Ava</b>"},
		})

		require.Len(t, clean, 1)
		assert.Equal(t, "Ava", clean[0].Name)
	})

	t.Run("keeps per-recipient variables", func(t *testing.T) {
		t.Parallel()

		clean := normalizeGroupRecipients([]recipientInput{
			{Email: "ava@acme.com", Name: "Ava", Variables: map[string]string{"company": "Acme"}},
		})

		require.Len(t, clean, 1)
		assert.Equal(t, "Acme", clean[0].Variables["company"])
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, normalizeGroupRecipients(nil))
	})
}
