package main

import (
	"strings"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of weave",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(weave.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
