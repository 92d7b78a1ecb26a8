package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/sample"
)

var (
	histVar      string
	histCut      string
	histLumi     float64
	histOverflow bool
	histRecreate bool
	histOutPath  string
)

var histCmd = &cobra.Command{
	Use:   "hist <target>",
	Short: "Binned distribution of a variable",
	Long:  "Scans (or retrieves from cache) the distribution of a variable for one sample or process and emits it as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseVariable(histVar)
		if err != nil {
			return err
		}
		env, err := initAnalysis(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := env.target(args[0])
		if err != nil {
			return err
		}
		h, err := q.GetHistogram(cmd.Context(), v, sample.Options{
			Cut:             cut.New(histCut),
			Luminosity:      lumiOrConfig(histLumi),
			IncludeOverflow: histOverflow,
			Recreate:        histRecreate || cfg.Cache.Recreate,
		})
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("no data for %s", args[0])
		}

		payload, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return err
		}
		if histOutPath != "" {
			return os.WriteFile(histOutPath, payload, 0o644)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	},
}

func init() {
	histCmd.Flags().StringVar(&histVar, "var", "", "variable as name:bins:low:high[:expr]")
	histCmd.Flags().StringVar(&histCut, "cut", "", "selection expression")
	histCmd.Flags().Float64Var(&histLumi, "luminosity", 0, "luminosity (default from config)")
	histCmd.Flags().BoolVar(&histOverflow, "overflow", false, "fold under/overflow into edge bins")
	histCmd.Flags().BoolVar(&histRecreate, "recreate", false, "bypass the histogram cache")
	histCmd.Flags().StringVar(&histOutPath, "out", "", "write JSON to file instead of stdout")
	histCmd.MarkFlagRequired("var") //nolint:errcheck
	rootCmd.AddCommand(histCmd)
}
