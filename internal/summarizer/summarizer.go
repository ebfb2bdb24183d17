// Package summarizer produces optional prose about a ranked statute list.
// Summaries never influence ranking; callers treat every error as "no
// summary".
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ipcmatch/internal/domain"
)

// ErrUnavailable means the summarizer cannot produce prose right now, for
// example because it is not configured or there is nothing to summarise.
var ErrUnavailable = errors.New("summary unavailable")

// None never produces a summary.
type None struct{}

func (None) Name() string { return "none" }

func (None) Summarize(context.Context, string, []domain.MatchResult) (string, error) {
	return "", ErrUnavailable
}

// Prompt builds the instruction sent to LLM-backed summarizers from the
// query and at most limit matches.
func Prompt(query string, matches []domain.MatchResult, limit int) string {
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	var sections strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sections, "IPC %s: %s - %s\n", m.Identifier, m.Entry.Title, m.Entry.Description)
	}
	return fmt.Sprintf(`As a legal information assistant, provide a concise and helpful summary for this case.

User query: %q

Relevant IPC sections:
%s
Please provide:
1. A brief summary of the legal situation
2. Key points about the applicable laws
3. General guidance (not legal advice)

Keep it concise (2-3 sentences) and user-friendly.`, query, sections.String())
}
