package engine

import (
	"errors"
	"fmt"

	"ipcmatch/internal/embedding/tfidf"
)

// Options is the single tuning surface of the ranker.
type Options struct {
	MaxVocabulary       int
	NgramMin            int
	NgramMax            int
	MinDocFreq          int
	MaxDocFreqRatio     float64
	SimilarityThreshold float64
	VectorTopK          int
	TopN                int

	// VectorPatternBoost and FallbackPatternBoost weight the pattern score of
	// a category whose name appears in an entry's title or keywords.
	VectorPatternBoost   float64
	FallbackPatternBoost float64

	// MatchedKeywordThreshold is the fuzzy ratio a query keyword must exceed
	// to be reported as matched on the vector path.
	MatchedKeywordThreshold float64

	EnableVectorSearch     bool
	EnablePatternBoost     bool
	EnableSynonymExpansion bool
	ExpandPatternWords     bool
	ExpandQuerySynonyms    bool
}

// DefaultOptions returns the reference tuning.
func DefaultOptions() Options {
	return Options{
		MaxVocabulary:           2000,
		NgramMin:                1,
		NgramMax:                3,
		MinDocFreq:              1,
		MaxDocFreqRatio:         0.95,
		SimilarityThreshold:     0.15,
		VectorTopK:              10,
		TopN:                    5,
		VectorPatternBoost:      0.3,
		FallbackPatternBoost:    0.5,
		MatchedKeywordThreshold: 0.6,
		EnableVectorSearch:      true,
		EnablePatternBoost:      true,
		EnableSynonymExpansion:  true,
	}
}

// Validate reports the first inconsistent setting.
func (o Options) Validate() error {
	switch {
	case o.NgramMin < 1 || o.NgramMax > 3 || o.NgramMin > o.NgramMax:
		return fmt.Errorf("ngram range [%d,%d] must lie within [1,3]", o.NgramMin, o.NgramMax)
	case o.MaxDocFreqRatio <= 0 || o.MaxDocFreqRatio > 1:
		return fmt.Errorf("max_doc_freq_ratio %.2f must be in (0,1]", o.MaxDocFreqRatio)
	case o.MinDocFreq < 1:
		return errors.New("min_doc_freq must be at least 1")
	case o.MaxVocabulary < 0:
		return errors.New("max_vocabulary must not be negative")
	case o.SimilarityThreshold < 0 || o.MatchedKeywordThreshold < 0:
		return errors.New("thresholds must not be negative")
	case o.VectorPatternBoost < 0 || o.FallbackPatternBoost < 0:
		return errors.New("pattern boosts must not be negative")
	case o.TopN < 1:
		return errors.New("top_n must be at least 1")
	case o.VectorTopK < 1:
		return errors.New("vector_top_k must be at least 1")
	}
	return nil
}

func (o Options) tfidf() tfidf.Options {
	return tfidf.Options{
		MaxFeatures: o.MaxVocabulary,
		NgramMin:    o.NgramMin,
		NgramMax:    o.NgramMax,
		MinDF:       o.MinDocFreq,
		MaxDFRatio:  o.MaxDocFreqRatio,
	}
}
