package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [project]",
	Short: "Check the project for consistency",
	Long:  `Loads the project and every procedure, then evaluates one round and reports invalid blocks and dependency cycles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := runValidate(cmd, args)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), "  -", p)
			}
			return fmt.Errorf("validation failed: %d problem(s)", len(problems))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) ([]string, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	path := projectPath(cmd, args)
	opts, err := loaderOptions(cmd, path, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, file.WithLogger(logger))

	project, err := file.NewLoader(opts...).Load(path)
	if err != nil {
		return nil, err
	}

	problems := invalidBlocks(project.Graph)
	names := make([]string, 0, len(project.Procedures))
	for name := range project.Procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g, err := project.Procedures[name]()
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", name, err)
		}
		problems = append(problems, invalidBlocks(g)...)
	}

	h := weave.New(project.Graph, weave.WithLogger(logger))
	if err := h.Tick(cmd.Context()); err != nil {
		return nil, err
	}
	if stalled := h.LastRound().Stalled; len(stalled) > 0 {
		var blocks []string
		h.View(func(g *domain.Graph) {
			for _, id := range stalled {
				if b, ok := g.Block(id); ok {
					blocks = append(blocks, b.Name)
				}
			}
		})
		problems = append(problems, fmt.Sprintf("%s: dependency cycle through %s", project.Graph.Name, strings.Join(blocks, ", ")))
	}
	return problems, nil
}

func invalidBlocks(g *domain.Graph) []string {
	var out []string
	for _, b := range g.Blocks() {
		if !b.Valid() {
			out = append(out, fmt.Sprintf("%s/%s: %s", g.Name, b.Name, b.Reason()))
		}
	}
	return out
}
