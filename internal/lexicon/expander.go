package lexicon

import (
	"regexp"
	"strings"

	"ipcmatch/internal/domain"
)

// ExpandOptions toggles the optional expansion steps. Boilerplate legal
// terms are always added.
type ExpandOptions struct {
	Synonyms     bool
	PatternWords bool
}

var patternWordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Expand derives one ExpandedStatuteEntry per entry, in input order.
func Expand(entries []domain.StatuteEntry, t *Tables, opts ExpandOptions) []domain.ExpandedStatuteEntry {
	out := make([]domain.ExpandedStatuteEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ExpandEntry(e, t, opts))
	}
	return out
}

// ExpandEntry unions the curated keywords with every synonym set a keyword
// triggers and then with the legal terms. Insertion order is preserved.
func ExpandEntry(e domain.StatuteEntry, t *Tables, opts ExpandOptions) domain.ExpandedStatuteEntry {
	ks := newOrderedSet(len(e.CuratedKeywords) * 4)
	for _, k := range e.CuratedKeywords {
		ks.add(k)
	}

	if opts.Synonyms {
		for _, k := range e.CuratedKeywords {
			lk := strings.ToLower(k)
			for _, s := range t.Synonyms {
				if triggers(lk, s.Terms) {
					ks.addAll(s.Terms)
				}
			}
		}
	}

	if opts.PatternWords {
		for _, p := range t.Patterns {
			if !anySubstringOf(e.CuratedKeywords, p.Category) {
				continue
			}
			for _, src := range p.Sources {
				ks.addAll(patternWordRe.FindAllString(strings.ToLower(src), -1))
			}
		}
	}

	ks.addAll(t.LegalTerms)

	expanded := ks.items()
	return domain.ExpandedStatuteEntry{
		StatuteEntry:     e,
		ExpandedKeywords: expanded,
		CorpusText:       CorpusText(e, expanded),
	}
}

// CorpusText is the document text used to fit the vector space.
func CorpusText(e domain.StatuteEntry, expanded []string) string {
	return strings.Join([]string{
		e.Title,
		e.Description,
		strings.Join(e.CuratedKeywords, " "),
		strings.Join(expanded, " "),
	}, " ")
}

// triggers reports whether keyword k (lowercased) pulls in the set terms:
// either k is a member or some term occurs inside k.
func triggers(k string, terms []string) bool {
	for _, syn := range terms {
		if syn == k || strings.Contains(k, syn) {
			return true
		}
	}
	return false
}

func anySubstringOf(keywords []string, category string) bool {
	for _, k := range keywords {
		if lk := strings.ToLower(k); lk != "" && strings.Contains(category, lk) {
			return true
		}
	}
	return false
}

type orderedSet struct {
	seen  map[string]struct{}
	order []string
}

func newOrderedSet(capacity int) *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}, capacity), order: make([]string, 0, capacity)}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *orderedSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

func (s *orderedSet) items() []string { return s.order }
