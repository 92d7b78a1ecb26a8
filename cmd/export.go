package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/export"
	"github.com/sells-group/analysis-cli/internal/variable"
)

var (
	exportVars []string
	exportCut  string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export <target>",
	Short: "Snapshot selected rows to a flat SQLite file",
	Long:  "Writes one table per leaf sample under the target with the selection applied, one column per variable plus the scaled weight, suitable for downstream training or plotting.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(exportVars) == 0 {
			return fmt.Errorf("at least one --var is required")
		}
		vars := make([]variable.Variable, len(exportVars))
		for i, spec := range exportVars {
			v, err := parseVariable(spec)
			if err != nil {
				return err
			}
			vars[i] = v
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
		if err := export.Snapshot(cmd.Context(), q, vars, cut.New(exportCut), exportOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d leaves)\n", exportOut, len(q.Leaves()))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringArrayVar(&exportVars, "var", nil, "variable as name:bins:low:high[:expr] (repeatable)")
	exportCmd.Flags().StringVar(&exportCut, "cut", "", "selection expression")
	exportCmd.Flags().StringVar(&exportOut, "out", "snapshot.db", "output SQLite path")
	rootCmd.AddCommand(exportCmd)
}
