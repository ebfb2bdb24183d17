// Package corpus loads the statute corpus file.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"ipcmatch/internal/domain"
)

var (
	ErrEmptyCorpus    = errors.New("corpus has no sections")
	ErrNoValidEntries = errors.New("corpus has no valid sections")
)

// BuildError is returned when the corpus cannot back an engine at all.
type BuildError struct {
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Path == "" {
		return "corpus: " + e.Err.Error()
	}
	return fmt.Sprintf("corpus %s: %v", e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

type rawDocument struct {
	Sections []json.RawMessage `json:"sections"`
}

type rawSection struct {
	SectionNumber *string   `json:"section_number"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Punishment    *string   `json:"punishment"`
	Keywords      *[]string `json:"keywords"`
}

// Load reads and validates the corpus at path.
func Load(path string, logger *zap.Logger) ([]domain.StatuteEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &BuildError{Path: path, Err: err}
	}
	entries, err := Parse(data, logger.With(zap.String("path", path)))
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			be.Path = path
		}
		return nil, err
	}
	return entries, nil
}

// Parse decodes a corpus document. Invalid sections are skipped with a
// warning; a document with no valid section is a BuildError.
func Parse(data []byte, logger *zap.Logger) ([]domain.StatuteEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &BuildError{Err: fmt.Errorf("decode: %w", err)}
	}
	if len(doc.Sections) == 0 {
		return nil, &BuildError{Err: ErrEmptyCorpus}
	}

	entries := make([]domain.StatuteEntry, 0, len(doc.Sections))
	seen := make(map[string]int, len(doc.Sections))
	for i, raw := range doc.Sections {
		entry, err := parseSection(raw)
		if err != nil {
			logger.Warn("skipping corpus section", zap.Int("index", i), zap.Error(err))
			continue
		}
		if first, dup := seen[entry.Identifier]; dup {
			logger.Warn("duplicate section number",
				zap.String("section", entry.Identifier), zap.Int("index", i), zap.Int("first_index", first))
		} else {
			seen[entry.Identifier] = i
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, &BuildError{Err: ErrNoValidEntries}
	}
	logger.Debug("corpus parsed", zap.Int("sections", len(entries)), zap.Int("skipped", len(doc.Sections)-len(entries)))
	return entries, nil
}

func parseSection(raw json.RawMessage) (domain.StatuteEntry, error) {
	var s rawSection
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.StatuteEntry{}, err
	}
	var missing []string
	if s.SectionNumber == nil || strings.TrimSpace(*s.SectionNumber) == "" {
		missing = append(missing, "section_number")
	}
	if s.Title == nil {
		missing = append(missing, "title")
	}
	if s.Description == nil {
		missing = append(missing, "description")
	}
	if s.Punishment == nil {
		missing = append(missing, "punishment")
	}
	if s.Keywords == nil {
		missing = append(missing, "keywords")
	}
	if len(missing) > 0 {
		return domain.StatuteEntry{}, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	keywords := make([]string, 0, len(*s.Keywords))
	for _, k := range *s.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return domain.StatuteEntry{
		Identifier:      strings.TrimSpace(*s.SectionNumber),
		Title:           *s.Title,
		Description:     *s.Description,
		Punishment:      *s.Punishment,
		CuratedKeywords: keywords,
	}, nil
}
