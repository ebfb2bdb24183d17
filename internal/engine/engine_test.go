package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ipcmatch/internal/corpus"
	"ipcmatch/internal/domain"
	"ipcmatch/internal/lexicon"
)

const (
	fixturePath   = "testdata/fixture.json"
	referencePath = "../../data/ipc_sections.json"
)

func build(t *testing.T, path string, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := BuildFromFile(path, lexicon.MustDefault(), opts, zap.NewNop())
	require.NoError(t, err)
	return e
}

func find(results []domain.MatchResult, id string) (domain.MatchResult, bool) {
	for _, r := range results {
		if r.Identifier == id {
			return r, true
		}
	}
	return domain.MatchResult{}, false
}

func assertRanked(t *testing.T, results []domain.MatchResult, topN int) {
	t.Helper()
	assert.LessOrEqual(t, len(results), topN)
	seen := make(map[string]bool)
	for i, r := range results {
		assert.False(t, seen[r.Identifier], "duplicate identifier %s", r.Identifier)
		seen[r.Identifier] = true
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score, "scores must not increase")
		}
	}
}

func TestRankTheftScenario(t *testing.T) {
	e := build(t, fixturePath, nil)

	results := e.Rank("Someone stole my phone")
	r, ok := find(results, "379")
	require.True(t, ok, "379 missing from %v", results)
	assert.Greater(t, r.Score, 0.0)
	assert.NotEmpty(t, r.Method)
	assert.Contains(t, r.MatchedKeywords, "stole")
	assert.Equal(t, "Theft", r.Entry.Title)
}

func TestRankAssaultScenario(t *testing.T) {
	const query = "A person hit me with a stick during an argument"

	for _, path := range []string{fixturePath, referencePath} {
		t.Run("vector search "+filepath.Base(path), func(t *testing.T) {
			e := build(t, path, nil)
			results := e.Rank(query)
			for _, id := range []string{"323", "324"} {
				r, ok := find(results, id)
				require.True(t, ok, "%s missing from %v", id, results)
				assert.Equal(t, domain.VectorSearch, r.Method)
				assert.InDelta(t, 0.3, r.Boost, 1e-9)
				assert.Greater(t, r.Score-r.Boost, e.Options().SimilarityThreshold)
			}
		})
	}

	t.Run("fuzzy fallback", func(t *testing.T) {
		e := build(t, fixturePath, func(o *Options) { o.EnableVectorSearch = false })
		results := e.Rank(query)
		for _, id := range []string{"323", "324"} {
			r, ok := find(results, id)
			require.True(t, ok, "%s missing from %v", id, results)
			assert.Equal(t, domain.FuzzyKeyword, r.Method)
			assert.Greater(t, r.Boost, 0.0)
			assert.Greater(t, r.Score, r.Boost)
		}
	})

	t.Run("no boost when disabled", func(t *testing.T) {
		e := build(t, fixturePath, func(o *Options) {
			o.EnableVectorSearch = false
			o.EnablePatternBoost = false
		})
		for _, r := range e.Rank(query) {
			assert.Zero(t, r.Boost)
		}
	})
}

func TestRankFallbackWhenVectorSearchDisabled(t *testing.T) {
	e := build(t, fixturePath, func(o *Options) { o.EnableVectorSearch = false })
	assert.False(t, e.Status().VectorSearch)

	results := e.Rank("defamation")
	r, ok := find(results, "500")
	require.True(t, ok)
	assert.Equal(t, domain.FuzzyKeyword, r.Method)
	assert.Equal(t, []string{"defamation"}, r.MatchedKeywords)
	assert.Equal(t, "500", results[0].Identifier)
}

func TestRankDegenerateQueries(t *testing.T) {
	e := build(t, fixturePath, nil)

	for _, q := range []string{"", "   ", "the a an of", "?!?! ... ,,,", "मेरा फोन चोरी हो गया", "日本語", "\x00\xff"} {
		t.Run(q, func(t *testing.T) {
			var got []domain.MatchResult
			require.NotPanics(t, func() { got = e.Rank(q) })
			assert.NotNil(t, got)
			assertRanked(t, got, 5)
		})
	}
	assert.Empty(t, e.Rank(""))
	assert.Empty(t, e.Rank("   "))
	assert.Empty(t, e.Rank("the a an of"))
}

func TestPatternCategoriesPerPath(t *testing.T) {
	e := build(t, referencePath, nil)
	i := indexOf(t, e, "392")

	assert.Equal(t, []string{"robbery"}, e.vectorCategories[i])
	assert.Contains(t, e.fallbackCategories[i], "robbery")
	assert.Contains(t, e.fallbackCategories[i], "theft", "robbery synonyms add forceful theft")
}

func TestRankVectorBoostIgnoresExpandedKeywords(t *testing.T) {
	e := build(t, referencePath, nil)

	// "stole my" is a theft pattern; 392 only names theft through its
	// synonym expansion, so the vector path must boost it for robbery alone.
	results := e.Rank("He stole my purse in a robbery")
	r, ok := find(results, "392")
	require.True(t, ok, "392 missing from %v", results)
	assert.Equal(t, domain.VectorSearch, r.Method)
	assert.InDelta(t, 0.3, r.Boost, 1e-9)

	dacoity, ok := find(results, "395")
	require.True(t, ok, "395 missing from %v", results)
	assert.InDelta(t, 0.3, dacoity.Boost, 1e-9)
}

func TestResultsDoNotShareEngineState(t *testing.T) {
	e := build(t, fixturePath, nil)

	results := e.Rank("defamation")
	r, ok := find(results, "500")
	require.True(t, ok)
	r.Entry.CuratedKeywords[0] = "changed"

	all := e.AllEntries()
	for i := range all {
		all[i].CuratedKeywords[0] = "changed"
	}

	again, ok := find(e.Rank("defamation"), "500")
	require.True(t, ok)
	assert.Equal(t, []string{"defamation", "rumors", "slander"}, again.Entry.CuratedKeywords)
	assert.Equal(t, []string{"theft", "steal", "stolen"}, e.AllEntries()[0].CuratedKeywords)
}

func indexOf(t *testing.T, e *Engine, id string) int {
	t.Helper()
	for i, x := range e.Expanded() {
		if x.Identifier == id {
			return i
		}
	}
	t.Fatalf("section %s not in corpus", id)
	return -1
}

func TestRankDeduplicatesIdentifiers(t *testing.T) {
	entries := []domain.StatuteEntry{
		{Identifier: "379", Title: "Theft", Description: "theft", CuratedKeywords: []string{"theft"}},
		{Identifier: "379", Title: "Theft again", Description: "theft", CuratedKeywords: []string{"theft", "steal"}},
		{Identifier: "500", Title: "Defamation", Description: "rumors", CuratedKeywords: []string{"defamation"}},
	}
	opts := DefaultOptions()
	opts.EnableVectorSearch = false
	e, err := Build(entries, lexicon.MustDefault(), opts, nil)
	require.NoError(t, err)

	results := e.Rank("theft")
	assertRanked(t, results, 5)
	count := 0
	for _, r := range results {
		if r.Identifier == "379" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRankTopN(t *testing.T) {
	e := build(t, referencePath, func(o *Options) { o.TopN = 2 })
	for _, q := range []string{"someone stole my phone and hit me", "my house was broken into"} {
		assert.LessOrEqual(t, len(e.Rank(q)), 2)
	}
}

var referenceQueries = []string{
	"Someone stole my phone",
	"A person hit me with a stick during an argument",
	"Someone threatened me with a knife",
	"A person broke into my house and stole my laptop",
	"Someone posted my private photos online without permission",
	"My neighbor killed my dog",
	"Someone demanded money from me by threatening to harm my family",
	"A group of people robbed me at gunpoint",
	"Someone kidnapped my child",
	"the a an of",
	"zzz qqq",
}

func TestRankInvariantsOnReferenceCorpus(t *testing.T) {
	e := build(t, referencePath, nil)
	require.True(t, e.Status().VectorSearch)

	for _, q := range referenceQueries {
		first := e.Rank(q)
		assertRanked(t, first, 5)
		assert.Equal(t, first, e.Rank(q), "ranking must be deterministic for %q", q)
	}
}

func TestRankConcurrentQueries(t *testing.T) {
	e := build(t, referencePath, nil)
	want := make(map[string][]domain.MatchResult, len(referenceQueries))
	for _, q := range referenceQueries {
		want[q] = e.Rank(q)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, q := range referenceQueries {
				assert.Equal(t, want[q], e.Rank(q))
			}
		}()
	}
	wg.Wait()
}

func TestBuildEmptyCorpusDegrades(t *testing.T) {
	e, err := Build(nil, lexicon.MustDefault(), DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, e.Rank("someone stole my phone"))
	assert.Zero(t, e.Status().TotalSections)
	assert.False(t, e.Status().VectorSearch)
}

func TestBuildFromFileErrors(t *testing.T) {
	_, err := BuildFromFile(filepath.Join(t.TempDir(), "missing.json"), lexicon.MustDefault(), DefaultOptions(), nil)
	var be *corpus.BuildError
	assert.ErrorAs(t, err, &be)

	opts := DefaultOptions()
	opts.TopN = 0
	_, err = BuildFromFile(fixturePath, lexicon.MustDefault(), opts, nil)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	e := build(t, fixturePath, nil)
	st := e.Status()
	assert.Equal(t, 4, st.TotalSections)
	assert.Equal(t, 4, st.ExpandedSections)
	assert.True(t, st.VectorSearch)
	assert.True(t, st.PatternBoost)
	assert.True(t, st.SynonymExpansion)
	assert.Positive(t, st.Vocabulary)
	assert.Len(t, e.AllEntries(), 4)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := map[string]func(*Options){
		"ngram above three":  func(o *Options) { o.NgramMax = 4 },
		"ngram inverted":     func(o *Options) { o.NgramMin, o.NgramMax = 3, 2 },
		"max df zero":        func(o *Options) { o.MaxDocFreqRatio = 0 },
		"min df zero":        func(o *Options) { o.MinDocFreq = 0 },
		"negative threshold": func(o *Options) { o.SimilarityThreshold = -0.1 },
		"negative boost":     func(o *Options) { o.VectorPatternBoost = -1 },
		"zero vector top k":  func(o *Options) { o.VectorTopK = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestHolderSwap(t *testing.T) {
	old := build(t, fixturePath, nil)
	h := NewHolder(old)
	assert.Same(t, old, h.Load())

	next := build(t, referencePath, nil)
	assert.Same(t, old, h.Swap(next))
	assert.Same(t, next, h.Load())
	assert.Equal(t, next.Status().TotalSections, h.Status().TotalSections)
	assert.Len(t, h.AllEntries(), next.Status().TotalSections)
}

func TestReloaderKeepsEngineOnFailure(t *testing.T) {
	old := build(t, fixturePath, nil)
	h := NewHolder(old)
	var outcomes []bool
	r := NewReloader(h, fixturePath, func() (*Engine, error) { return nil, errors.New("boom") }, nil,
		WithReloadHook(func(ok bool) { outcomes = append(outcomes, ok) }))

	assert.False(t, r.Reload())
	assert.Same(t, old, h.Load())
	assert.Equal(t, []bool{false}, outcomes)
}

func TestReloaderWatchesCorpusFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h := NewHolder(build(t, path, nil))
	r := NewReloader(h, path, func() (*Engine, error) {
		return BuildFromFile(path, lexicon.MustDefault(), DefaultOptions(), nil)
	}, nil, WithDebounce(20*time.Millisecond))
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })

	reference, err := os.ReadFile(referencePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, reference, 0o644))

	assert.Eventually(t, func() bool {
		return h.Status().TotalSections > 4
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}
