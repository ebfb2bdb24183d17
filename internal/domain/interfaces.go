package domain

import (
	"context"
	"sort"
)

// StatuteEntry is one penal code section as loaded from the corpus.
type StatuteEntry struct {
	Identifier      string   `json:"section_number"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Punishment      string   `json:"punishment"`
	CuratedKeywords []string `json:"keywords"`
}

// ExpandedStatuteEntry carries the synonym-augmented keyword set and the
// text that is fed to the vectorizer.
type ExpandedStatuteEntry struct {
	StatuteEntry
	ExpandedKeywords []string `json:"expanded_keywords"`
	CorpusText       string   `json:"-"`
}

// MatchMethod names the ranking path that produced a result.
type MatchMethod string

const (
	VectorSearch MatchMethod = "vector_search"
	FuzzyKeyword MatchMethod = "fuzzy_keyword"
)

// MatchResult is a single ranked statute for a query.
type MatchResult struct {
	Identifier      string       `json:"section_number"`
	Score           float64      `json:"score"`
	Method          MatchMethod  `json:"method"`
	MatchedKeywords []string     `json:"matched_keywords"`
	// Boost is the pattern contribution already included in Score.
	Boost float64      `json:"pattern_boost"`
	Entry StatuteEntry `json:"section"`
}

// SparseVector maps vocabulary index to weight.
type SparseVector map[int]float64

// Indices returns the vector's non-zero positions in ascending order. Sums
// taken in this order are reproducible across calls.
func (v SparseVector) Indices() []int {
	idx := make([]int, 0, len(v))
	for i := range v {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// SearchHit is a document index with its cosine similarity to a query.
type SearchHit struct {
	Index int
	Score float64
}

// Embedder converts free text into a sparse vector over a frozen vocabulary.
// Prepare must be called once over the corpus before Embed.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) (SparseVector, error)
}

// VectorStore holds document vectors and answers similarity queries.
type VectorStore interface {
	Init(dimension int) error
	Upsert(vectors []SparseVector) error
	Search(vector SparseVector, topK int, threshold float64) ([]SearchHit, error)
	Len() int
}

// Summarizer produces optional prose for a query and its top matches.
// Implementations return summarizer.ErrUnavailable when they cannot answer.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, query string, matches []MatchResult) (string, error)
}

// Ranker is the read-only query surface of an engine.
type Ranker interface {
	Rank(query string) []MatchResult
	AllEntries() []StatuteEntry
}
