package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ipcmatch/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{conversationLog: true, summaries: true})
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.svc.Status()
		banner := fmt.Sprintf("%d sections, vocabulary %d, vector search %t, summarizer %s",
			st.Engine.TotalSections, st.Engine.Vocabulary, st.Engine.VectorSearch, st.Summarizer)
		m := tui.New(a.svc, uuid.NewString(), banner)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}
