// Package service turns ranked statutes into user-facing answers. It owns
// response shaping, the optional summary and the conversation log; ranking
// itself stays in the engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ipcmatch/internal/convlog"
	"ipcmatch/internal/domain"
	"ipcmatch/internal/engine"
	"ipcmatch/internal/metrics"
	"ipcmatch/internal/summarizer"
)

const (
	noMatchMessage = "I couldn't find any specific IPC sections that match your description. " +
		"Please try rephrasing your query or provide more details about the incident."
	disclaimer = "**Important Disclaimer:** This is general legal information based on the Indian Penal Code " +
		"and should not be considered as legal advice. For specific legal guidance, please consult with a " +
		"qualified lawyer or legal professional."
)

var defaultSuggestions = []string{
	"Consider consulting with a legal professional for specific advice",
	"Document all evidence related to the incident",
	"File a police complaint if necessary",
	"Keep records of any financial losses or damages",
}

// InputError rejects a request before it reaches the engine.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

var errBlankDescription = &InputError{Msg: "Please provide a description of the incident"}

// Engine is what the service needs from a ranker. *engine.Holder and
// *engine.Engine both satisfy it.
type Engine interface {
	domain.Ranker
	Status() engine.Status
}

// Deps wires a Service. Only Engine is required.
type Deps struct {
	Engine         Engine
	Summarizer     domain.Summarizer
	Sink           convlog.Sink
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	SummaryTimeout time.Duration
}

// Service answers analysis, search and browse requests.
type Service struct {
	engine         Engine
	summarizer     domain.Summarizer
	sink           convlog.Sink
	metrics        *metrics.Metrics
	logger         *zap.Logger
	summaryTimeout time.Duration
	now            func() time.Time
}

func New(d Deps) (*Service, error) {
	if d.Engine == nil {
		return nil, errors.New("service: engine is required")
	}
	if d.Summarizer == nil {
		d.Summarizer = summarizer.None{}
	}
	if d.Sink == nil {
		d.Sink = convlog.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SummaryTimeout <= 0 {
		d.SummaryTimeout = 20 * time.Second
	}
	return &Service{
		engine:         d.Engine,
		summarizer:     d.Summarizer,
		sink:           d.Sink,
		metrics:        d.Metrics,
		logger:         d.Logger,
		summaryTimeout: d.SummaryTimeout,
		now:            time.Now,
	}, nil
}

// Analysis is the answer to one incident description.
type Analysis struct {
	Message         string               `json:"message"`
	Sections        []domain.MatchResult `json:"sections"`
	Confidence      float64              `json:"confidence"`
	MatchedKeywords []string             `json:"matched_keywords"`
	Suggestions     []string             `json:"suggestions"`
	Summary         string               `json:"summary,omitempty"`
	SummarySource   string               `json:"summary_source,omitempty"`
}

// Analyze ranks description, formats the answer and records the exchange
// under sessionID. Summary and log failures never fail the request.
func (s *Service) Analyze(ctx context.Context, sessionID, description string) (*Analysis, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errBlankDescription
	}
	matches := s.rank(description)

	a := &Analysis{
		Sections:        matches,
		Confidence:      averageScore(matches),
		MatchedKeywords: []string{},
		Suggestions:     []string{},
	}
	for _, m := range matches {
		a.MatchedKeywords = append(a.MatchedKeywords, m.MatchedKeywords...)
	}
	if len(matches) > 0 {
		a.Suggestions = append(a.Suggestions, defaultSuggestions...)
		if text, ok := s.summarize(ctx, description, matches); ok {
			a.Summary = text
			a.SummarySource = s.summarizer.Name()
		}
	}
	a.Message = formatMessage(matches, a.Summary)

	s.record(ctx, sessionID, description, a)
	return a, nil
}

// SummaryResult answers a standalone summary request.
type SummaryResult struct {
	Summary          string   `json:"summary,omitempty"`
	RelevantSections []string `json:"relevant_sections"`
	Confidence       float64  `json:"confidence"`
	Model            string   `json:"ai_model"`
}

// Summary ranks description and summarizes the result. When no summary can
// be produced the result still lists the sections and the error wraps
// summarizer.ErrUnavailable.
func (s *Service) Summary(ctx context.Context, description string) (*SummaryResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errBlankDescription
	}
	matches := s.rank(description)
	res := &SummaryResult{
		RelevantSections: identifiers(matches),
		Confidence:       averageScore(matches),
		Model:            s.summarizer.Name(),
	}
	text, ok := s.summarize(ctx, description, matches)
	if !ok {
		return res, fmt.Errorf("summary for %d sections: %w", len(matches), summarizer.ErrUnavailable)
	}
	res.Summary = text
	return res, nil
}

// SuggestionResult carries next-step advice for an incident.
type SuggestionResult struct {
	Suggestions      []string `json:"suggestions"`
	RelevantSections []string `json:"relevant_sections"`
	Confidence       float64  `json:"confidence"`
	Summary          string   `json:"summary,omitempty"`
}

// Suggestions ranks description and returns the standard advice with the
// relevant section numbers. A summary is attached when one is available.
func (s *Service) Suggestions(ctx context.Context, description string) (*SuggestionResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errBlankDescription
	}
	matches := s.rank(description)
	res := &SuggestionResult{
		Suggestions:      append([]string(nil), defaultSuggestions...),
		RelevantSections: identifiers(matches),
		Confidence:       averageScore(matches),
	}
	if text, ok := s.summarize(ctx, description, matches); ok {
		res.Summary = text
	}
	return res, nil
}

// SampleQueries are ranked by RankSamples when the caller names none.
var SampleQueries = []string{
	"Someone stole my phone",
	"A person hit me with a stick during an argument",
	"Someone threatened me with a knife",
}

// SampleRanking is the outcome of one query in a RankSamples run.
type SampleRanking struct {
	Query      string   `json:"query"`
	Sections   []string `json:"sections"`
	Confidence float64  `json:"confidence"`
}

// SampleReport answers a RankSamples run.
type SampleReport struct {
	Results []SampleRanking `json:"test_results"`
	Total   int             `json:"total_tests"`
}

// RankSamples ranks each query and keeps the three best section numbers.
// Confidence averages over every match, not just the three kept. Blank
// queries rank to nothing.
func (s *Service) RankSamples(queries []string) SampleReport {
	if len(queries) == 0 {
		queries = SampleQueries
	}
	rep := SampleReport{Results: make([]SampleRanking, 0, len(queries)), Total: len(queries)}
	for _, q := range queries {
		var matches []domain.MatchResult
		if strings.TrimSpace(q) != "" {
			matches = s.rank(q)
		}
		ids := identifiers(matches)
		if len(ids) > 3 {
			ids = ids[:3]
		}
		rep.Results = append(rep.Results, SampleRanking{
			Query:      q,
			Sections:   ids,
			Confidence: averageScore(matches),
		})
	}
	return rep
}

// SearchResult lists the sections relevant to a short query.
type SearchResult struct {
	Query    string                `json:"query"`
	Sections []domain.StatuteEntry `json:"sections"`
}

// Search returns matching sections without scores. A blank query yields no
// sections rather than an error.
func (s *Service) Search(query string) SearchResult {
	query = strings.TrimSpace(query)
	res := SearchResult{Query: query, Sections: []domain.StatuteEntry{}}
	if query == "" {
		return res
	}
	for _, m := range s.rank(query) {
		res.Sections = append(res.Sections, m.Entry)
	}
	return res
}

// Sections lists the whole corpus.
func (s *Service) Sections() []domain.StatuteEntry { return s.engine.AllEntries() }

// StatusReport describes the active engine and enrichments.
type StatusReport struct {
	Engine          engine.Status `json:"engine"`
	Summarizer      string        `json:"summarizer"`
	SummaryEnabled  bool          `json:"summary_enabled"`
	ConversationLog bool          `json:"conversation_log"`
}

func (s *Service) Status() StatusReport {
	_, nop := s.sink.(convlog.Nop)
	_, none := s.summarizer.(summarizer.None)
	return StatusReport{
		Engine:          s.engine.Status(),
		Summarizer:      s.summarizer.Name(),
		SummaryEnabled:  !none,
		ConversationLog: !nop,
	}
}

// Logs returns recorded exchanges, newest first.
func (s *Service) Logs(limit int) ([]convlog.Record, error) {
	return s.sink.List(limit)
}

func (s *Service) rank(query string) []domain.MatchResult {
	start := s.now()
	matches := s.engine.Rank(query)
	method := ""
	if len(matches) > 0 {
		method = string(matches[0].Method)
	}
	s.metrics.ObserveQuery(method, s.now().Sub(start))
	s.logger.Debug("ranked query", zap.Int("matches", len(matches)), zap.String("method", method))
	return matches
}

func (s *Service) summarize(ctx context.Context, query string, matches []domain.MatchResult) (string, bool) {
	if len(matches) == 0 {
		s.metrics.ObserveSummary(metrics.SummaryUnavailable)
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	text, err := s.summarizer.Summarize(ctx, query, matches)
	switch {
	case errors.Is(err, summarizer.ErrUnavailable):
		s.metrics.ObserveSummary(metrics.SummaryUnavailable)
		return "", false
	case err != nil:
		s.metrics.ObserveSummary(metrics.SummaryError)
		s.logger.Warn("summary failed", zap.String("summarizer", s.summarizer.Name()), zap.Error(err))
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.ObserveSummary(metrics.SummaryUnavailable)
		return "", false
	}
	s.metrics.ObserveSummary(metrics.SummaryOK)
	return text, true
}

func (s *Service) record(ctx context.Context, sessionID, input string, a *Analysis) {
	data, err := json.Marshal(a)
	if err != nil {
		s.logger.Warn("encode conversation", zap.Error(err))
		return
	}
	rec := convlog.Record{
		Timestamp: s.now().UTC(),
		SessionID: sessionID,
		UserInput: input,
		Response:  data,
	}
	if err := s.sink.Append(ctx, rec); err != nil {
		s.logger.Warn("save conversation log", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func formatMessage(matches []domain.MatchResult, summary string) string {
	if len(matches) == 0 {
		return noMatchMessage
	}
	var b strings.Builder
	if len(matches) == 1 {
		e := matches[0].Entry
		fmt.Fprintf(&b, "Based on your description, this incident appears to fall under **IPC Section %s - %s**.\n\n",
			matches[0].Identifier, e.Title)
		fmt.Fprintf(&b, "**Description:** %s\n\n", e.Description)
		fmt.Fprintf(&b, "**Punishment:** %s", e.Punishment)
	} else {
		fmt.Fprintf(&b, "I found %d potentially relevant IPC sections for your case:\n\n", len(matches))
		for i, m := range matches {
			fmt.Fprintf(&b, "%d. **IPC Section %s - %s** (Confidence: %.1f%%)\n", i+1, m.Identifier, m.Entry.Title, m.Score*100)
			fmt.Fprintf(&b, "   **Description:** %s\n", m.Entry.Description)
			fmt.Fprintf(&b, "   **Punishment:** %s\n\n", m.Entry.Punishment)
		}
	}
	if summary != "" {
		fmt.Fprintf(&b, "\n\n**Summary:** %s", summary)
	}
	b.WriteString("\n\n")
	b.WriteString(disclaimer)
	return b.String()
}

func averageScore(matches []domain.MatchResult) float64 {
	if len(matches) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range matches {
		total += m.Score
	}
	return total / float64(len(matches))
}

func identifiers(matches []domain.MatchResult) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Identifier)
	}
	return out
}
