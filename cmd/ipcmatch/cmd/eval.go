package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ipcmatch/internal/eval"
)

var (
	flagEvalCases string
	flagEvalJSON  bool
	flagEvalMinF1 float64
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure ranking accuracy against the labelled cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		cases, err := eval.DefaultCases()
		if flagEvalCases != "" {
			cases, err = eval.LoadCases(flagEvalCases)
		}
		if err != nil {
			return err
		}

		rep := eval.Evaluate(a.holder, cases)
		out := cmd.OutOrStdout()
		if flagEvalJSON {
			err = rep.WriteJSON(out)
		} else {
			err = rep.WriteText(out)
		}
		if err != nil {
			return err
		}
		if rep.Overall.MicroF1 < flagEvalMinF1 {
			return fmt.Errorf("micro F1 %.3f below required %.3f", rep.Overall.MicroF1, flagEvalMinF1)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&flagEvalCases, "cases", "", "YAML file of labelled cases (default: built-in set)")
	evalCmd.Flags().BoolVar(&flagEvalJSON, "json", false, "write the report as JSON")
	evalCmd.Flags().Float64Var(&flagEvalMinF1, "min-f1", 0, "fail when micro F1 is below this value")
}
