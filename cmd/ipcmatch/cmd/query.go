package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ipcmatch/internal/service"
)

var (
	flagQueryJSON    bool
	flagQuerySummary bool
)

var queryCmd = &cobra.Command{
	Use:   "query <description>",
	Short: "Rank sections for one incident description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{summaries: flagQuerySummary})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Analyze(cmd.Context(), "cli", strings.Join(args, " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if flagQueryJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return printAnalysis(out, res)
	},
}

func init() {
	queryCmd.Flags().BoolVar(&flagQueryJSON, "json", false, "print the full analysis as JSON")
	queryCmd.Flags().BoolVar(&flagQuerySummary, "summary", false, "add a summary from the configured summarizer")
}

func printAnalysis(w io.Writer, a *service.Analysis) error {
	if len(a.Sections) == 0 {
		_, err := fmt.Fprintln(w, "No matching sections.")
		return err
	}
	for i, m := range a.Sections {
		fmt.Fprintf(w, "%d. Section %-6s %-45s score=%.3f  %s\n", i+1, m.Identifier, m.Entry.Title, m.Score, m.Method)
		if len(m.MatchedKeywords) > 0 {
			fmt.Fprintf(w, "   matched: %s\n", strings.Join(m.MatchedKeywords, ", "))
		}
		if m.Entry.Punishment != "" {
			fmt.Fprintf(w, "   punishment: %s\n", m.Entry.Punishment)
		}
	}
	fmt.Fprintf(w, "\naverage confidence %.1f%%\n", a.Confidence*100)
	if a.Summary != "" {
		fmt.Fprintf(w, "\nsummary (%s): %s\n", a.SummarySource, a.Summary)
	}
	return nil
}
