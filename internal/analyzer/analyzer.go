// Package analyzer turns a raw incident description into the keyword list
// and per-category pattern scores consumed by the ranker.
package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ipcmatch/internal/lexicon"
)

const minTokenLen = 3

var punctRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)

var stopwords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"is", "are", "was", "were", "be", "been", "being", "have", "has", "had", "do", "does", "did",
	"will", "would", "could", "should", "may", "might", "must", "can", "this", "that", "these", "those",
	"i", "you", "he", "she", "it", "we", "they", "me", "him", "her", "us", "them",
	"my", "your", "his", "its", "our", "their", "mine", "yours", "hers", "ours", "theirs",
)

// Options configures optional analysis steps.
type Options struct {
	// ExpandSynonyms appends the full synonym set of every unigram that is
	// a member of one. Used for fuzzy matching only.
	ExpandSynonyms bool
}

// Analyzer is safe for concurrent use; it holds only read-only tables.
type Analyzer struct {
	tables *lexicon.Tables
	opts   Options
}

// New returns an Analyzer over the given tables.
func New(tables *lexicon.Tables, opts Options) *Analyzer {
	return &Analyzer{tables: tables, opts: opts}
}

// Normalize lowercases the query, replaces punctuation with spaces and
// returns the remaining unigrams followed by the bigrams and trigrams of the
// unfiltered token stream whose parts are all at least three runes long.
func (a *Analyzer) Normalize(query string) []string {
	words := Split(query)
	if len(words) == 0 {
		return nil
	}
	long := make([]bool, len(words))
	for i, w := range words {
		long[i] = utf8.RuneCountInString(w) >= minTokenLen
	}

	var unigrams, bigrams, trigrams []string
	for i, w := range words {
		if long[i] && !IsStopword(w) {
			unigrams = append(unigrams, w)
		}
	}
	for i := 0; i+1 < len(words); i++ {
		if long[i] && long[i+1] {
			bigrams = append(bigrams, words[i]+" "+words[i+1])
		}
	}
	for i := 0; i+2 < len(words); i++ {
		if long[i] && long[i+1] && long[i+2] {
			trigrams = append(trigrams, words[i]+" "+words[i+1]+" "+words[i+2])
		}
	}

	out := make([]string, 0, len(unigrams)+len(bigrams)+len(trigrams))
	out = append(out, unigrams...)
	out = append(out, bigrams...)
	return append(out, trigrams...)
}

// Keywords is Normalize plus the optional query synonym expansion.
func (a *Analyzer) Keywords(query string) []string {
	kws := a.Normalize(query)
	if !a.opts.ExpandSynonyms || a.tables == nil {
		return kws
	}
	n := len(kws)
	for _, k := range kws[:n] {
		if strings.Contains(k, " ") {
			continue
		}
		for _, s := range a.tables.SynonymSetsContaining(k) {
			kws = append(kws, s.Terms...)
		}
	}
	return kws
}

// PatternScore counts, per category, how many of its expressions match
// anywhere in the lowercased query. Categories without a match are omitted.
func (a *Analyzer) PatternScore(query string) map[string]float64 {
	scores := make(map[string]float64)
	if a.tables == nil {
		return scores
	}
	q := strings.ToLower(query)
	for _, p := range a.tables.Patterns {
		for _, re := range p.Compiled() {
			if re.MatchString(q) {
				scores[p.Category]++
			}
		}
	}
	return scores
}

// Split lowercases s, turns punctuation into whitespace and splits it.
func Split(s string) []string {
	return strings.Fields(punctRe.ReplaceAllString(strings.ToLower(s), " "))
}

// IsStopword reports whether w is in the query stop word list.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
