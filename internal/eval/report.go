package eval

import (
	"fmt"
	"io"
	"strings"
)

// Quality labels a micro F1 score.
func Quality(microF1 float64) string {
	switch {
	case microF1 >= 0.9:
		return "EXCELLENT"
	case microF1 >= 0.8:
		return "GOOD"
	case microF1 >= 0.7:
		return "FAIR"
	default:
		return "POOR"
	}
}

// WriteText renders a human readable report.
func (r Report) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 60)
	sub := strings.Repeat("-", 40)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nSTATUTE MATCHER - ACCURACY EVALUATION REPORT\n%s\n\n", rule, rule)

	o := r.Overall
	fmt.Fprintf(&b, "OVERALL\n%s\n", sub)
	fmt.Fprintf(&b, "Total cases:      %d\n", o.TotalCases)
	fmt.Fprintf(&b, "Exact accuracy:   %s\n", pct(o.Accuracy))
	fmt.Fprintf(&b, "Micro F1:         %s\n", pct(o.MicroF1))
	fmt.Fprintf(&b, "Macro F1:         %s\n", pct(o.MacroF1))
	fmt.Fprintf(&b, "Micro precision:  %s\n", pct(o.MicroPrecision))
	fmt.Fprintf(&b, "Micro recall:     %s\n", pct(o.MicroRecall))
	fmt.Fprintf(&b, "Macro precision:  %s\n", pct(o.MacroPrecision))
	fmt.Fprintf(&b, "Macro recall:     %s\n", pct(o.MacroRecall))
	fmt.Fprintf(&b, "Avg confidence:   %.3f\n\n", o.AvgConfidence)

	fmt.Fprintf(&b, "BY CATEGORY\n%s\n", sub)
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "%s (%d)\n", strings.ToUpper(c.Category), c.Count)
		fmt.Fprintf(&b, "  accuracy %s  f1 %s  precision %s  recall %s\n",
			pct(c.AvgAccuracy), pct(c.AvgF1), pct(c.AvgPrecision), pct(c.AvgRecall))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "CASES\n%s\n", sub)
	for i, c := range r.Cases {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Description)
		fmt.Fprintf(&b, "   query:     %q\n", c.Query)
		fmt.Fprintf(&b, "   expected:  %s\n", strings.Join(c.Expected, ", "))
		fmt.Fprintf(&b, "   predicted: %s\n", strings.Join(c.Predicted, ", "))
		fmt.Fprintf(&b, "   f1 %s  accuracy %s  confidence %.3f\n", pct(c.F1), pct(c.Accuracy), c.AvgConfidence)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "ASSESSMENT: %s (micro F1 %s)\n%s\n", Quality(o.MicroF1), pct(o.MicroF1), rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }
