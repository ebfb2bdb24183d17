package summarizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcmatch/internal/domain"
)

var theft = domain.MatchResult{
	Identifier: "379",
	Entry: domain.StatuteEntry{
		Title:       "Theft",
		Description: "Whoever intending to take dishonestly any movable property out of the possession of any person without that person's consent moves that property is said to commit theft.",
		Punishment:  "Imprisonment up to 3 years, or fine, or both.",
	},
}

func TestFrequencySummarizer(t *testing.T) {
	s := NewFrequencySummarizer(2)
	assert.Equal(t, "frequency", s.Name())

	out, err := s.Summarize(context.Background(), "my property was stolen", []domain.MatchResult{theft})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.LessOrEqual(t, strings.Count(out, ". "), 2)
	assert.Contains(t, out, "property")

	again, err := s.Summarize(context.Background(), "my property was stolen", []domain.MatchResult{theft})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestFrequencySummarizerUnavailable(t *testing.T) {
	_, err := NewFrequencySummarizer(0).Summarize(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFrequencySummarizer(1).Summarize(ctx, "q", []domain.MatchResult{theft})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNone(t *testing.T) {
	_, err := None{}.Summarize(context.Background(), "q", []domain.MatchResult{theft})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPrompt(t *testing.T) {
	second := domain.MatchResult{Identifier: "380", Entry: domain.StatuteEntry{Title: "Theft in dwelling house"}}
	p := Prompt("stolen bike", []domain.MatchResult{theft, second}, 1)
	assert.Contains(t, p, `User query: "stolen bike"`)
	assert.Contains(t, p, "IPC 379: Theft")
	assert.NotContains(t, p, "IPC 380")
}
