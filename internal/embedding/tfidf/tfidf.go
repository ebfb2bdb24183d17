package tfidf

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"ipcmatch/internal/domain"
)

var (
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	ErrNoTerms     = errors.New("tfidf: no terms remain after pruning")
	ErrNotPrepared = errors.New("tfidf: embedder not prepared")
)

// Options controls vocabulary construction.
type Options struct {
	MaxFeatures int
	NgramMin    int
	NgramMax    int
	MinDF       int
	// MaxDFRatio drops terms present in more than this share of documents.
	MaxDFRatio float64
}

// DefaultOptions mirrors the reference tuning.
func DefaultOptions() Options {
	return Options{MaxFeatures: 2000, NgramMin: 1, NgramMax: 3, MinDF: 1, MaxDFRatio: 0.95}
}

// Embedder is a TF-IDF vectorizer over word n-grams. The vocabulary and IDF
// weights are frozen by Prepare; Embed never grows them.
type Embedder struct {
	opts         Options
	vocabulary   map[string]int
	terms        []string
	idf          []float64
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder(opts Options) *Embedder {
	if opts.NgramMin < 1 {
		opts.NgramMin = 1
	}
	if opts.NgramMax < opts.NgramMin {
		opts.NgramMax = opts.NgramMin
	}
	if opts.MaxDFRatio <= 0 || opts.MaxDFRatio > 1 {
		opts.MaxDFRatio = 1
	}
	return &Embedder{
		opts:         opts,
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}_]{2,}`),
		stopwords:    englishStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, term := range e.analyze(text) {
			tf[term]++
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	N := float64(len(corpus))
	maxDocs := e.opts.MaxDFRatio * N
	kept := make([]string, 0, len(df))
	for term, d := range df {
		if float64(d) > maxDocs || d < e.opts.MinDF {
			continue
		}
		kept = append(kept, term)
	}
	if len(kept) == 0 {
		return ErrNoTerms
	}
	sort.Strings(kept)
	if e.opts.MaxFeatures > 0 && len(kept) > e.opts.MaxFeatures {
		// most frequent first; equal counts stay alphabetical
		sort.SliceStable(kept, func(i, j int) bool { return tf[kept[i]] > tf[kept[j]] })
		kept = kept[:e.opts.MaxFeatures]
		sort.Strings(kept)
	}

	e.vocabulary = make(map[string]int, len(kept))
	e.idf = make([]float64, len(kept))
	for i, term := range kept {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	e.terms = kept
	e.prepared = true
	return nil
}

// Dimension returns the vocabulary size.
func (e *Embedder) Dimension() int { return len(e.terms) }

// Terms returns the vocabulary in index order.
func (e *Embedder) Terms() []string { return e.terms }

// IDF returns the weight of term and whether it is in the vocabulary.
func (e *Embedder) IDF(term string) (float64, bool) {
	idx, ok := e.vocabulary[term]
	if !ok {
		return 0, false
	}
	return e.idf[idx], true
}

// Embed computes the L2-normalised TF-IDF vector of text. Text with no
// vocabulary terms yields an empty vector and no error.
func (e *Embedder) Embed(text string) (domain.SparseVector, error) {
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	vec := make(domain.SparseVector)
	for _, term := range e.analyze(text) {
		if idx, ok := e.vocabulary[term]; ok {
			vec[idx]++
		}
	}
	if len(vec) == 0 {
		return vec, nil
	}
	norm := 0.0
	for _, idx := range vec.Indices() {
		w := vec[idx] * e.idf[idx]
		vec[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
	return vec, nil
}

// analyze returns the n-gram terms of text after stop word removal.
func (e *Embedder) analyze(text string) []string {
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	var out []string
	for n := e.opts.NgramMin; n <= e.opts.NgramMax && n <= len(tokens); n++ {
		if n == 1 {
			out = append(out, tokens...)
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}
