package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcmatch/internal/domain"
	"ipcmatch/internal/summarizer"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if t, ok := parts[0].(genai.Text); ok {
			f.prompt = string(t)
		}
	}
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(s)}}},
	}}
}

var matches = []domain.MatchResult{
	{Identifier: "379", Entry: domain.StatuteEntry{Title: "Theft", Description: "Taking property."}},
	{Identifier: "380", Entry: domain.StatuteEntry{Title: "Theft in dwelling house"}},
	{Identifier: "411", Entry: domain.StatuteEntry{Title: "Receiving stolen property"}},
	{Identifier: "420", Entry: domain.StatuteEntry{Title: "Cheating"}},
}

func TestSummarize(t *testing.T) {
	g := &fakeGenerator{resp: textResponse("  This looks like theft.  ")}
	s := newWithGenerator(g, "test-model", time.Second)

	got, err := s.Summarize(context.Background(), "someone stole my phone", matches)
	require.NoError(t, err)
	assert.Equal(t, "This looks like theft.", got)
	assert.Contains(t, g.prompt, "IPC 379: Theft - Taking property.")
	assert.Contains(t, g.prompt, "IPC 411")
	assert.NotContains(t, g.prompt, "IPC 420", "only the top three sections are sent")
}

func TestSummarizeFailures(t *testing.T) {
	s := newWithGenerator(&fakeGenerator{err: errors.New("quota")}, "m", time.Second)
	_, err := s.Summarize(context.Background(), "q", matches)
	assert.ErrorContains(t, err, "quota")

	s = newWithGenerator(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, "m", time.Second)
	_, err = s.Summarize(context.Background(), "q", matches)
	assert.ErrorIs(t, err, summarizer.ErrUnavailable)

	_, err = s.Summarize(context.Background(), "q", nil)
	assert.ErrorIs(t, err, summarizer.ErrUnavailable)
}

func TestNewRequiresKey(t *testing.T) {
	t.Setenv("IPCMATCH_TEST_GEMINI_KEY", "")
	_, err := New(context.Background(), Config{APIKeyEnv: "IPCMATCH_TEST_GEMINI_KEY"})
	assert.ErrorContains(t, err, "IPCMATCH_TEST_GEMINI_KEY")
}
