package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/analysis-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent histogram cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached histogram",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	},
}

var cacheStatCmd = &cobra.Command{
	Use:   "stat",
	Short: "Report cache size",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Len()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", cfg.Cache.Path, n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatCmd)
	rootCmd.AddCommand(cacheCmd)
}
