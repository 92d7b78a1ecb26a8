package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/export"
	"github.com/sells-group/analysis-cli/internal/sample"
)

var (
	cutflowCuts       []string
	cutflowAccumulate bool
	cutflowLumi       float64
	cutflowXLSXPath   string
)

var cutflowCmd = &cobra.Command{
	Use:   "cutflow [targets...]",
	Short: "Per-cut yield summaries",
	Long:  "Evaluates a sequence of cuts against each target, either AND-accumulated into a tightening selection or applied independently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cutflowCuts) == 0 {
			return fmt.Errorf("at least one --cut is required")
		}
		env, err := initAnalysis(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		cuts := make([]cut.Cut, len(cutflowCuts))
		for i, expr := range cutflowCuts {
			cuts[i] = cut.New(expr)
		}
		opt := sample.Options{Luminosity: lumiOrConfig(cutflowLumi)}

		targets := args
		if len(targets) == 0 {
			targets = env.Registry.Names()
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		var sheets []export.CutflowSheet
		for _, name := range targets {
			q, err := env.target(name)
			if err != nil {
				return err
			}
			flow, err := q.GetCutFlowYields(cmd.Context(), cuts, cutflowAccumulate, opt)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t\t\n", name)
			for _, step := range flow {
				fmt.Fprintf(w, "  %s\t%.4f\t%.4f\n", step.Cut.String(), step.Yield.Value, step.Yield.Error)
			}
			sheets = append(sheets, export.CutflowSheet{Name: name, Rows: flow})
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if cutflowXLSXPath != "" {
			return export.CutflowXLSX(cutflowXLSXPath, sheets)
		}
		return nil
	},
}

func init() {
	cutflowCmd.Flags().StringArrayVar(&cutflowCuts, "cut", nil, "cut expression (repeatable, in order)")
	cutflowCmd.Flags().BoolVar(&cutflowAccumulate, "accumulate", true, "AND each cut onto the previous selection")
	cutflowCmd.Flags().Float64Var(&cutflowLumi, "luminosity", 0, "luminosity (default from config)")
	cutflowCmd.Flags().StringVar(&cutflowXLSXPath, "xlsx", "", "also write an xlsx workbook")
	rootCmd.AddCommand(cutflowCmd)
}
