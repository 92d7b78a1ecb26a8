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
	yieldCut      string
	yieldLumi     float64
	yieldIgnoreW  bool
	yieldRecreate bool
	yieldXLSXPath string
)

var yieldCmd = &cobra.Command{
	Use:   "yield [targets...]",
	Short: "Integrated yields with statistical uncertainties",
	Long:  "Computes the selected event yield for each named sample or process. With no targets, every registered entry is reported.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initAnalysis(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		targets := args
		if len(targets) == 0 {
			targets = env.Registry.Names()
		}
		opt := sample.Options{
			Cut:           cut.New(yieldCut),
			Luminosity:    lumiOrConfig(yieldLumi),
			IgnoreWeights: yieldIgnoreW,
			Recreate:      yieldRecreate || cfg.Cache.Recreate,
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tYIELD\tUNCERTAINTY")
		var sheets []export.CutflowSheet
		for _, name := range targets {
			q, err := env.target(name)
			if err != nil {
				return err
			}
			y, err := q.GetYield(cmd.Context(), opt)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", name, y.Value, y.Error)
			sheets = append(sheets, export.CutflowSheet{
				Name: name,
				Rows: []sample.CutYield{{Cut: opt.Cut, Yield: y}},
			})
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if yieldXLSXPath != "" {
			return export.CutflowXLSX(yieldXLSXPath, sheets)
		}
		return nil
	},
}

func lumiOrConfig(flag float64) float64 {
	if flag != 0 {
		return flag
	}
	return cfg.Analysis.Luminosity
}

func init() {
	yieldCmd.Flags().StringVar(&yieldCut, "cut", "", "selection expression")
	yieldCmd.Flags().Float64Var(&yieldLumi, "luminosity", 0, "luminosity (default from config)")
	yieldCmd.Flags().BoolVar(&yieldIgnoreW, "ignore-weights", false, "count raw selected rows")
	yieldCmd.Flags().BoolVar(&yieldRecreate, "recreate", false, "bypass the histogram cache")
	yieldCmd.Flags().StringVar(&yieldXLSXPath, "xlsx", "", "also write an xlsx workbook")
	rootCmd.AddCommand(yieldCmd)
}
