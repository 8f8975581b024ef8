package telegram

import (
	"strings"
	"testing"

	"academic_outreach/internal/domain/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkData(t *testing.T) {
	id, status, err := parseMarkData("42:1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, ledger.StatusPositive, status)

	_, _, err = parseMarkData("42")
	assert.Error(t, err)
	_, _, err = parseMarkData("x:1")
	assert.Error(t, err)
	_, _, err = parseMarkData("42:7")
	assert.Error(t, err)
}

func TestResponseKeyboard(t *testing.T) {
	markup := responseKeyboard(9)
	require.Len(t, markup.InlineKeyboard, len(keyboardStatuses))
	btn := markup.InlineKeyboard[0][0]
	assert.Equal(t, "positive", btn.Text)
	assert.Equal(t, markUnique, btn.Unique)
	assert.Equal(t, "9:1", btn.Data)
	assert.False(t, markup.ResizeKeyboard)
	assert.Empty(t, markup.ReplyKeyboard)
}

func TestSplitPayload(t *testing.T) {
	assert.Equal(t, []string{"Ada Lovelace", "Univ", "ada@u.edu"}, splitPayload(" Ada Lovelace | Univ |ada@u.edu "))
	assert.Equal(t, []string{"3", "", "new@u.edu"}, splitPayload("3 | | new@u.edu"))
	assert.Nil(t, splitPayload("   "))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := "line one\nline two\nline three"
	parts := splitMessage(text, 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, parts)

	long := strings.Repeat("é", 10) // 20 bytes
	for _, p := range splitMessage(long, 7) {
		assert.LessOrEqual(t, len(p), 7)
		assert.True(t, strings.Count(p, "é")*2 == len(p))
	}
}
