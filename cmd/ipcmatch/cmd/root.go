package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagCorpus   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "ipcmatch",
	Short:         "ipcmatch - find the penal code sections an incident falls under",
	Long:          "Ranks Indian Penal Code sections against a free-text incident description using TF-IDF search, fuzzy keyword matching and crime-pattern boosts.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to YAML config (default ./config.yaml or ~/.config/ipcmatch/config.yaml)")
	pf.StringVar(&flagCorpus, "corpus", "", "path to the statute corpus JSON (overrides config)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sectionsCmd)
}
