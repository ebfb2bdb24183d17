// Package gemini summarizes ranked statutes with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ipcmatch/internal/domain"
	"ipcmatch/internal/summarizer"
)

const promptSections = 3

// Config configures the Gemini summarizer.
type Config struct {
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Summarizer asks a Gemini model for a short summary of the top sections.
type Summarizer struct {
	client  *genai.Client
	model   generator
	name    string
	timeout time.Duration
}

// New connects to Gemini. It fails when the API key is not set so callers
// can fall back to another summarizer.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	s := newWithGenerator(client.GenerativeModel(cfg.Model), cfg.Model, cfg.Timeout)
	s.client = client
	return s, nil
}

func newWithGenerator(g generator, model string, timeout time.Duration) *Summarizer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Summarizer{model: g, name: model, timeout: timeout}
}

func (s *Summarizer) Name() string { return "gemini" }

// Summarize sends the query and the top three sections to the model.
func (s *Summarizer) Summarize(ctx context.Context, query string, matches []domain.MatchResult) (string, error) {
	if len(matches) == 0 {
		return "", summarizer.ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.model.GenerateContent(ctx, genai.Text(summarizer.Prompt(query, matches, promptSections)))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", s.name, err)
	}
	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					out.WriteString(string(t))
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", summarizer.ErrUnavailable
	}
	return text, nil
}

// Close releases the client connection.
func (s *Summarizer) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
