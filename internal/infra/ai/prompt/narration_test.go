package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUserPrompt(t *testing.T) {
	t.Parallel()

	got := GetUserPrompt("text", "review.txt", `{"documents":[]}`)
	assert.Equal(t, "File: review.txt\nAnalysis type: text\nResult JSON:\n{\"documents\":[]}", got)
}

func TestGetUserPromptTruncates(t *testing.T) {
	t.Parallel()

	got := GetUserPrompt("image", "photo.jpg", strings.Repeat("x", maxResultChars+100))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, len(got), maxResultChars+100)
}
