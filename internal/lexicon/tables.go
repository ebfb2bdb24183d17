// Package lexicon holds the static crime-category tables: synonym sets,
// surface regex patterns and boilerplate legal terms. It also derives the
// expanded keyword set for each statute entry.
package lexicon

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

const (
	synonymsFile = "data/synonyms.yaml"
	patternsFile = "data/patterns.yaml"
)

// SynonymSet is the list of surface terms for one crime category.
type SynonymSet struct {
	Category string   `yaml:"name"`
	Terms    []string `yaml:"synonyms"`
}

// PatternSet is the ordered list of regular expressions for one category.
type PatternSet struct {
	Category string   `yaml:"name"`
	Sources  []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// Compiled returns the compiled expressions in source order.
func (p PatternSet) Compiled() []*regexp.Regexp { return p.compiled }

// Tables is the full read-only lexicon. Slices keep file order so every
// derivation from them is deterministic.
type Tables struct {
	Synonyms   []SynonymSet
	Patterns   []PatternSet
	LegalTerms []string
}

type synonymsDoc struct {
	Categories []SynonymSet `yaml:"categories"`
	LegalTerms []string     `yaml:"legal_terms"`
}

type patternsDoc struct {
	Categories []PatternSet `yaml:"categories"`
}

// Default returns the tables compiled into the binary.
func Default() (*Tables, error) {
	return LoadFromFS(dataFS, synonymsFile, patternsFile)
}

// MustDefault is Default for package-level test fixtures and main.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFromFS reads both table files from fsys.
func LoadFromFS(fsys fs.FS, synPath, patPath string) (*Tables, error) {
	syn, err := fs.ReadFile(fsys, synPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", synPath, err)
	}
	pat, err := fs.ReadFile(fsys, patPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", patPath, err)
	}
	return Parse(syn, pat)
}

// LoadFiles reads table overrides from disk. An empty path falls back to the
// embedded copy of that table.
func LoadFiles(synPath, patPath string) (*Tables, error) {
	read := func(path, embedded string) ([]byte, error) {
		if path == "" {
			return dataFS.ReadFile(embedded)
		}
		return os.ReadFile(path)
	}
	syn, err := read(synPath, synonymsFile)
	if err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	pat, err := read(patPath, patternsFile)
	if err != nil {
		return nil, fmt.Errorf("read patterns: %w", err)
	}
	return Parse(syn, pat)
}

// Parse decodes and validates both YAML documents and compiles the patterns.
func Parse(synData, patData []byte) (*Tables, error) {
	var sd synonymsDoc
	if err := yaml.Unmarshal(synData, &sd); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}
	var pd patternsDoc
	if err := yaml.Unmarshal(patData, &pd); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}

	t := &Tables{LegalTerms: normalizeTerms(sd.LegalTerms)}
	seen := make(map[string]bool)
	for _, s := range sd.Categories {
		name := strings.ToLower(strings.TrimSpace(s.Category))
		if name == "" {
			return nil, errors.New("synonyms: category with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("synonyms: duplicate category %q", name)
		}
		seen[name] = true
		t.Synonyms = append(t.Synonyms, SynonymSet{Category: name, Terms: normalizeTerms(s.Terms)})
	}

	seen = make(map[string]bool)
	for _, p := range pd.Categories {
		name := strings.ToLower(strings.TrimSpace(p.Category))
		if name == "" {
			return nil, errors.New("patterns: category with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("patterns: duplicate category %q", name)
		}
		seen[name] = true
		set := PatternSet{Category: name, Sources: p.Sources}
		for _, src := range p.Sources {
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("patterns: category %q: %w", name, err)
			}
			set.compiled = append(set.compiled, re)
		}
		t.Patterns = append(t.Patterns, set)
	}
	return t, nil
}

// SynonymCategories returns category names in table order.
func (t *Tables) SynonymCategories() []string {
	out := make([]string, len(t.Synonyms))
	for i, s := range t.Synonyms {
		out[i] = s.Category
	}
	return out
}

// PatternCategories returns category names in table order.
func (t *Tables) PatternCategories() []string {
	out := make([]string, len(t.Patterns))
	for i, p := range t.Patterns {
		out[i] = p.Category
	}
	return out
}

// SynonymSetsContaining returns every set that lists term exactly.
func (t *Tables) SynonymSetsContaining(term string) []SynonymSet {
	term = strings.ToLower(term)
	var out []SynonymSet
	for _, s := range t.Synonyms {
		for _, syn := range s.Terms {
			if syn == term {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func normalizeTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
