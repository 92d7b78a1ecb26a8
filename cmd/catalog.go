package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/analysis-cli/internal/sample"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the configured sample catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the configured catalogs and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initAnalysis(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entries registered\n", env.Registry.Len())
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered samples and processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initAnalysis(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tTITLE\tXSEC\tLEAVES")
		for _, name := range env.Registry.Names() {
			q, _ := env.Registry.Lookup(name)
			kind := "sample"
			if _, ok := q.(*sample.Process); ok {
				kind = "process"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%d\n",
				name, kind, q.Title(), q.CrossSection(), len(q.Leaves()))
		}
		return w.Flush()
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd, catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}
