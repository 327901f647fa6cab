package main

import (
	"fmt"

	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe [project]",
	Short: "Describe blocks, ports and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, err := openHost(cmd, args)
		if err != nil {
			return err
		}

		var doc string
		h.View(func(g *domain.Graph) {
			doc = graph.Describe(g)
		})

		out, err := tui.NewRenderer(cmd.OutOrStdout())(doc)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
