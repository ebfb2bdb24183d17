// Package engine ranks statute sections against a free-text incident
// description. An Engine is built once from a corpus and is read-only
// afterwards, so one instance may serve any number of concurrent queries.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ipcmatch/internal/analyzer"
	"ipcmatch/internal/corpus"
	"ipcmatch/internal/domain"
	"ipcmatch/internal/embedding/tfidf"
	"ipcmatch/internal/fuzzy"
	"ipcmatch/internal/lexicon"
	"ipcmatch/internal/vectorstore/memory"
)

// Fuzzy bands for the keyword fallback, checked from the top.
var fallbackBands = []struct {
	above  float64
	weight float64
}{
	{0.8, 3},
	{0.6, 2},
	{0.4, 1},
}

// Status describes what the engine was built with.
type Status struct {
	TotalSections    int       `json:"total_sections"`
	ExpandedSections int       `json:"expanded_sections"`
	VectorSearch     bool      `json:"vector_search"`
	PatternBoost     bool      `json:"pattern_boost"`
	SynonymExpansion bool      `json:"synonym_expansion"`
	Vocabulary       int       `json:"vocabulary"`
	BuiltAt          time.Time `json:"built_at"`
}

// Engine is the retrieval and ranking core.
type Engine struct {
	opts     Options
	logger   *zap.Logger
	tables   *lexicon.Tables
	analyzer *analyzer.Analyzer

	entries  []domain.StatuteEntry
	expanded []domain.ExpandedStatuteEntry
	// vectorCategories[i] lists the pattern categories named in entry i's
	// title or curated keywords; fallbackCategories[i] checks the expanded
	// keywords instead. Both are in pattern table order.
	vectorCategories   [][]string
	fallbackCategories [][]string

	embedder    domain.Embedder
	store       domain.VectorStore
	vectorReady bool
	builtAt     time.Time
}

// BuildFromFile loads the corpus at path and builds an engine over it. A
// missing, unparseable or empty corpus is returned as *corpus.BuildError.
func BuildFromFile(path string, tables *lexicon.Tables, opts Options, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := corpus.Load(path, logger)
	if err != nil {
		return nil, err
	}
	return Build(entries, tables, opts, logger)
}

// Build expands the entries and fits the vector space. A failed vector
// build is not fatal: the engine ranks with the fuzzy fallback only.
func Build(entries []domain.StatuteEntry, tables *lexicon.Tables, opts Options, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	if tables == nil {
		return nil, fmt.Errorf("engine: nil lexicon tables")
	}
	start := time.Now()

	e := &Engine{
		opts:     opts,
		logger:   logger,
		tables:   tables,
		analyzer: analyzer.New(tables, analyzer.Options{ExpandSynonyms: opts.ExpandQuerySynonyms}),
		entries:  make([]domain.StatuteEntry, len(entries)),
	}
	for i, entry := range entries {
		e.entries[i] = cloneEntry(entry)
	}
	if len(entries) == 0 {
		logger.Warn("building engine over an empty corpus; every query will return no matches")
	}

	e.expanded = lexicon.Expand(e.entries, tables, lexicon.ExpandOptions{
		Synonyms:     opts.EnableSynonymExpansion,
		PatternWords: opts.ExpandPatternWords,
	})
	e.vectorCategories, e.fallbackCategories = entryCategories(e.expanded, tables)

	if opts.EnableVectorSearch && len(e.expanded) > 0 {
		if err := e.buildVectors(); err != nil {
			logger.Warn("vector space build failed; ranking falls back to fuzzy keywords", zap.Error(err))
		}
	}
	e.builtAt = time.Now()

	logger.Info("engine built",
		zap.Int("sections", len(e.entries)),
		zap.Bool("vector_search", e.vectorReady),
		zap.Int("vocabulary", e.vocabulary()),
		zap.Duration("took", e.builtAt.Sub(start)))
	return e, nil
}

func (e *Engine) buildVectors() error {
	texts := make([]string, len(e.expanded))
	for i, x := range e.expanded {
		texts[i] = x.CorpusText
	}
	emb := tfidf.NewEmbedder(e.opts.tfidf())
	if err := emb.Prepare(texts); err != nil {
		return err
	}
	vectors := make([]domain.SparseVector, len(texts))
	for i, text := range texts {
		v, err := emb.Embed(text)
		if err != nil {
			return fmt.Errorf("embed section %s: %w", e.expanded[i].Identifier, err)
		}
		vectors[i] = v
	}
	store := memory.NewStorage()
	if err := store.Init(emb.Dimension()); err != nil {
		return err
	}
	if err := store.Upsert(vectors); err != nil {
		return err
	}
	e.embedder = emb
	e.store = store
	e.vectorReady = true
	return nil
}

// entryCategories detects the pattern categories of each entry twice: once
// against title and curated keywords for the vector path, once against title
// and expanded keywords for the fuzzy fallback.
func entryCategories(expanded []domain.ExpandedStatuteEntry, tables *lexicon.Tables) (vector, fallback [][]string) {
	names := tables.PatternCategories()
	detector := lexicon.NewCategoryDetector(names)
	vector = make([][]string, len(expanded))
	fallback = make([][]string, len(expanded))
	for i, x := range expanded {
		inTitle := detector.Detect(x.Title)
		inCurated := detector.Detect(strings.Join(x.CuratedKeywords, " "))
		inExpanded := detector.Detect(strings.Join(x.ExpandedKeywords, " "))
		for _, name := range names {
			if inTitle[name] || inCurated[name] {
				vector[i] = append(vector[i], name)
			}
			if inTitle[name] || inExpanded[name] {
				fallback[i] = append(fallback[i], name)
			}
		}
	}
	return vector, fallback
}

// Rank returns at most TopN sections for query, best first, with unique
// identifiers. An empty slice means no relevant section was found.
func (e *Engine) Rank(query string) []domain.MatchResult {
	if e == nil || len(e.expanded) == 0 || strings.TrimSpace(query) == "" {
		return []domain.MatchResult{}
	}
	keywords := e.analyzer.Keywords(query)
	var patterns map[string]float64
	if e.opts.EnablePatternBoost {
		patterns = e.analyzer.PatternScore(query)
	}

	candidates := e.vectorCandidates(query, keywords, patterns)
	if len(candidates) == 0 {
		candidates = e.fuzzyCandidates(keywords, patterns)
	}
	return e.top(candidates)
}

func (e *Engine) vectorCandidates(query string, keywords []string, patterns map[string]float64) []domain.MatchResult {
	if !e.vectorReady {
		return nil
	}
	vec, err := e.embedder.Embed(query)
	if err != nil {
		e.logger.Debug("query embedding failed", zap.Error(err))
		return nil
	}
	hits, err := e.store.Search(vec, e.opts.VectorTopK, e.opts.SimilarityThreshold)
	if err != nil {
		e.logger.Debug("vector search failed", zap.Error(err))
		return nil
	}
	out := make([]domain.MatchResult, 0, len(hits))
	for _, h := range hits {
		x := e.expanded[h.Index]
		boost := patternBoost(e.vectorCategories[h.Index], patterns, e.opts.VectorPatternBoost)
		var matched []string
		for _, kw := range keywords {
			if fuzzy.Best(kw, x.ExpandedKeywords) > e.opts.MatchedKeywordThreshold {
				matched = appendUnique(matched, kw)
			}
		}
		out = append(out, domain.MatchResult{
			Identifier:      x.Identifier,
			Score:           h.Score + boost,
			Method:          domain.VectorSearch,
			MatchedKeywords: nonNil(matched),
			Boost:           boost,
			Entry:           cloneEntry(x.StatuteEntry),
		})
	}
	return out
}

func (e *Engine) fuzzyCandidates(keywords []string, patterns map[string]float64) []domain.MatchResult {
	if len(keywords) == 0 {
		return nil
	}
	n := float64(len(keywords))
	var out []domain.MatchResult
	for i, x := range e.expanded {
		score := 0.0
		var matched []string
		for _, kw := range keywords {
			for _, sk := range x.ExpandedKeywords {
				r := fuzzy.Ratio(kw, sk)
				for _, band := range fallbackBands {
					if r > band.above {
						score += r * band.weight
						matched = appendUnique(matched, kw)
						break
					}
				}
			}
		}
		boost := patternBoost(e.fallbackCategories[i], patterns, e.opts.FallbackPatternBoost)
		score += boost
		if score <= 0 {
			continue
		}
		out = append(out, domain.MatchResult{
			Identifier:      x.Identifier,
			Score:           score / n,
			Method:          domain.FuzzyKeyword,
			MatchedKeywords: nonNil(matched),
			Boost:           boost / n,
			Entry:           cloneEntry(x.StatuteEntry),
		})
	}
	return out
}

// patternBoost sums weight*score over the query's pattern categories that
// appear in categories.
func patternBoost(categories []string, patterns map[string]float64, weight float64) float64 {
	if len(patterns) == 0 {
		return 0
	}
	boost := 0.0
	for _, c := range categories {
		boost += patterns[c] * weight
	}
	return boost
}

// top sorts by score, keeps the first occurrence of each identifier and
// truncates to TopN.
func (e *Engine) top(candidates []domain.MatchResult) []domain.MatchResult {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	out := make([]domain.MatchResult, 0, e.opts.TopN)
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if len(out) == e.opts.TopN {
			break
		}
		if _, dup := seen[c.Identifier]; dup {
			continue
		}
		seen[c.Identifier] = struct{}{}
		out = append(out, c)
	}
	return out
}

// AllEntries returns the loaded sections in corpus order.
func (e *Engine) AllEntries() []domain.StatuteEntry {
	if e == nil {
		return nil
	}
	out := make([]domain.StatuteEntry, len(e.entries))
	for i, entry := range e.entries {
		out[i] = cloneEntry(entry)
	}
	return out
}

// Expanded returns the derived entries. Callers must not modify them.
func (e *Engine) Expanded() []domain.ExpandedStatuteEntry {
	if e == nil {
		return nil
	}
	return e.expanded
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Status reports the build outcome.
func (e *Engine) Status() Status {
	if e == nil {
		return Status{}
	}
	return Status{
		TotalSections:    len(e.entries),
		ExpandedSections: len(e.expanded),
		VectorSearch:     e.vectorReady,
		PatternBoost:     e.opts.EnablePatternBoost,
		SynonymExpansion: e.opts.EnableSynonymExpansion,
		Vocabulary:       e.vocabulary(),
		BuiltAt:          e.builtAt,
	}
}

func (e *Engine) vocabulary() int {
	if !e.vectorReady {
		return 0
	}
	return e.embedder.Dimension()
}

func cloneEntry(entry domain.StatuteEntry) domain.StatuteEntry {
	entry.CuratedKeywords = append([]string(nil), entry.CuratedKeywords...)
	return entry
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
