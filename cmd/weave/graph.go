package main

import (
	"fmt"

	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [project]",
	Short: "Export the graph visualization",
	Long:  `Loads the project and prints a Mermaid diagram (graph LR) of its blocks and links, or of one of its procedures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, err := openHost(cmd, args)
		if err != nil {
			return err
		}

		procedure, _ := cmd.Flags().GetString("procedure")
		if procedure == "" {
			h.View(func(g *domain.Graph) {
				fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
			})
			return nil
		}

		id, err := h.Start(cmd.Context(), procedure)
		if err != nil {
			return err
		}
		return h.ViewInstance(id, func(g *domain.Graph, active []string) {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, &graph.GraphOverlay{Active: active}))
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("procedure", "p", "", "Render a procedure, highlighting its first active steps")
}
