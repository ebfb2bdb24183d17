package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var flagSectionsJSON bool

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List every section in the corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.svc.Sections()
		out := cmd.OutOrStdout()
		if flagSectionsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"sections": entries})
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%-6s %s\n", e.Identifier, e.Title)
		}
		fmt.Fprintf(out, "\n%d sections\n", len(entries))
		return nil
	},
}

func init() {
	sectionsCmd.Flags().BoolVar(&flagSectionsJSON, "json", false, "print sections as JSON")
}
