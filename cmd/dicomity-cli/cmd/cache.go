package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the header cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the cache lives and how many headers it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt.Store == nil {
			return errors.New("header cache is disabled")
		}
		n, err := rt.Store.Count()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%d headers\n", rt.Store.Path(), n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every cached header",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt.Store == nil {
			return errors.New("header cache is disabled")
		}
		rt.Session.ClearCache()
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
