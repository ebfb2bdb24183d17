package lexicon

import (
	"strings"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// CategoryDetector reports which category names occur as substrings of a
// text. Names are matched lowercased against lowercased text.
type CategoryDetector struct {
	automaton aho.AhoCorasick
	names     []string
	built     bool
}

// NewCategoryDetector compiles an automaton over names.
func NewCategoryDetector(names []string) *CategoryDetector {
	d := &CategoryDetector{names: make([]string, 0, len(names))}
	for _, n := range names {
		if n = strings.ToLower(n); n != "" {
			d.names = append(d.names, n)
		}
	}
	if len(d.names) == 0 {
		return d
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	d.automaton = builder.Build(d.names)
	d.built = true
	return d
}

// Detect returns the set of names present in text. Overlapping occurrences
// are all reported, so one name nested in another does not hide it.
func (d *CategoryDetector) Detect(text string) map[string]bool {
	if !d.built || text == "" {
		return nil
	}
	iter := d.automaton.IterOverlappingByte([]byte(strings.ToLower(text)))
	var found map[string]bool
	for next := iter.Next(); next != nil; next = iter.Next() {
		if found == nil {
			found = make(map[string]bool)
		}
		found[d.names[next.Pattern()]] = true
	}
	return found
}

// Names returns the detector's category names.
func (d *CategoryDetector) Names() []string { return d.names }
