// Package eval measures ranking quality against a labelled set of incident
// descriptions.
package eval

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"ipcmatch/internal/domain"
)

//go:embed data/cases.yaml
var casesFS embed.FS

// Case is one labelled query.
type Case struct {
	Query       string   `yaml:"query" json:"query"`
	Expected    []string `yaml:"expected" json:"expected_sections"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
}

// Ranker is the part of the engine the harness needs.
type Ranker interface {
	Rank(query string) []domain.MatchResult
}

// CaseResult holds the metrics of one case.
type CaseResult struct {
	Case
	Predicted      []string `json:"predicted_sections"`
	TruePositives  int      `json:"true_positives"`
	FalsePositives int      `json:"false_positives"`
	FalseNegatives int      `json:"false_negatives"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	F1             float64  `json:"f1_score"`
	// Accuracy is 1 when the predicted set equals the expected set.
	Accuracy      float64 `json:"accuracy"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Overall aggregates every case.
type Overall struct {
	TotalCases     int     `json:"total_cases"`
	MicroPrecision float64 `json:"micro_precision"`
	MicroRecall    float64 `json:"micro_recall"`
	MicroF1        float64 `json:"micro_f1"`
	MacroPrecision float64 `json:"macro_precision"`
	MacroRecall    float64 `json:"macro_recall"`
	MacroF1        float64 `json:"macro_f1"`
	Accuracy       float64 `json:"overall_accuracy"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// CategoryMetrics averages the cases sharing a category label.
type CategoryMetrics struct {
	Category     string  `json:"category"`
	Count        int     `json:"count"`
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
	AvgF1        float64 `json:"avg_f1"`
	AvgAccuracy  float64 `json:"avg_accuracy"`
}

// Report is the full evaluation outcome.
type Report struct {
	Cases      []CaseResult      `json:"individual_results"`
	Overall    Overall           `json:"overall_metrics"`
	Categories []CategoryMetrics `json:"category_metrics"`
}

// DefaultCases returns the embedded labelled set.
func DefaultCases() ([]Case, error) {
	data, err := casesFS.ReadFile("data/cases.yaml")
	if err != nil {
		return nil, err
	}
	return ParseCases(data)
}

// LoadCases reads a labelled set from a YAML file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	return ParseCases(data)
}

// ParseCases decodes a YAML document with a top-level cases list.
func ParseCases(data []byte) ([]Case, error) {
	var doc struct {
		Cases []Case `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, errors.New("no evaluation cases")
	}
	for i, c := range doc.Cases {
		if c.Query == "" || len(c.Expected) == 0 {
			return nil, fmt.Errorf("case %d: query and expected sections are required", i)
		}
	}
	return doc.Cases, nil
}

// Evaluate runs every case through r.
func Evaluate(r Ranker, cases []Case) Report {
	rep := Report{Cases: make([]CaseResult, 0, len(cases))}
	for _, c := range cases {
		rep.Cases = append(rep.Cases, evaluateCase(c, r.Rank(c.Query)))
	}
	rep.Overall = overall(rep.Cases)
	rep.Categories = byCategory(rep.Cases)
	return rep
}

func evaluateCase(c Case, results []domain.MatchResult) CaseResult {
	expected := toSet(c.Expected)
	predicted := make(map[string]bool, len(results))
	res := CaseResult{Case: c, Predicted: []string{}}
	total := 0.0
	for _, m := range results {
		total += m.Score
		if predicted[m.Identifier] {
			continue
		}
		predicted[m.Identifier] = true
		res.Predicted = append(res.Predicted, m.Identifier)
	}
	for id := range predicted {
		if expected[id] {
			res.TruePositives++
		} else {
			res.FalsePositives++
		}
	}
	for id := range expected {
		if !predicted[id] {
			res.FalseNegatives++
		}
	}
	res.Precision = ratio(res.TruePositives, res.TruePositives+res.FalsePositives)
	res.Recall = ratio(res.TruePositives, res.TruePositives+res.FalseNegatives)
	res.F1 = f1(res.Precision, res.Recall)
	if res.FalsePositives == 0 && res.FalseNegatives == 0 {
		res.Accuracy = 1
	}
	if len(results) > 0 {
		res.AvgConfidence = total / float64(len(results))
	}
	return res
}

func overall(cases []CaseResult) Overall {
	o := Overall{TotalCases: len(cases)}
	if len(cases) == 0 {
		return o
	}
	var tp, fp, fn int
	for _, c := range cases {
		tp += c.TruePositives
		fp += c.FalsePositives
		fn += c.FalseNegatives
		o.MacroPrecision += c.Precision
		o.MacroRecall += c.Recall
		o.MacroF1 += c.F1
		o.Accuracy += c.Accuracy
		o.AvgConfidence += c.AvgConfidence
	}
	n := float64(len(cases))
	o.MacroPrecision /= n
	o.MacroRecall /= n
	o.MacroF1 /= n
	o.Accuracy /= n
	o.AvgConfidence /= n
	o.MicroPrecision = ratio(tp, tp+fp)
	o.MicroRecall = ratio(tp, tp+fn)
	o.MicroF1 = f1(o.MicroPrecision, o.MicroRecall)
	return o
}

// byCategory keeps categories in order of first appearance.
func byCategory(cases []CaseResult) []CategoryMetrics {
	index := make(map[string]int)
	var out []CategoryMetrics
	for _, c := range cases {
		i, ok := index[c.Category]
		if !ok {
			i = len(out)
			index[c.Category] = i
			out = append(out, CategoryMetrics{Category: c.Category})
		}
		m := &out[i]
		m.Count++
		m.AvgPrecision += c.Precision
		m.AvgRecall += c.Recall
		m.AvgF1 += c.F1
		m.AvgAccuracy += c.Accuracy
	}
	for i := range out {
		n := float64(out[i].Count)
		out[i].AvgPrecision /= n
		out[i].AvgRecall /= n
		out[i].AvgF1 /= n
		out[i].AvgAccuracy /= n
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
