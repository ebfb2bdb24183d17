package summarizer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"ipcmatch/internal/domain"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?;]+[.!?;])`)

// FrequencySummarizer is an offline extractive summarizer. It ranks the
// sentences of the matched sections by word frequency, with words from the
// query counting double.
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxSentences int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		maxSentences: maxSentences,
	}
}

func (s *FrequencySummarizer) Name() string { return "frequency" }

// Summarize returns the best sentences of the matched sections in their
// original order.
func (s *FrequencySummarizer) Summarize(ctx context.Context, query string, matches []domain.MatchResult) (string, error) {
	if len(matches) == 0 {
		return "", ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, m := range matches {
		text := fmt.Sprintf("Section %s (%s) applies. %s Punishment: %s.",
			m.Identifier, m.Entry.Title, strings.TrimSpace(m.Entry.Description), strings.TrimSuffix(m.Entry.Punishment, "."))
		for _, sent := range sentenceRe.FindAllString(text, -1) {
			if sent = strings.TrimSpace(sent); sent != "" {
				sentences = append(sentences, sent)
			}
		}
	}
	if len(sentences) == 0 {
		return "", ErrUnavailable
	}

	queryTerms := make(map[string]struct{})
	for _, tok := range s.tokens(query) {
		queryTerms[tok] = struct{}{}
	}
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
			if _, ok := queryTerms[tok]; ok {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
		}
		// normalise by length to avoid bias towards long sentences
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := s.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "shall", "any", "whoever",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
