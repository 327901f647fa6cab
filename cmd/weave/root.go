package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/aretw0/weave/pkg/adapters/process"
	"github.com/aretw0/weave/pkg/runner"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "weave",
	Short:         "Weave runs live dataflow graphs and step procedures",
	Long:          `Weave loads a YAML project of blocks and links, evaluates its dataflow every tick and drives the procedures it declares.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	sm := runner.NewSignalManager(context.Background())
	defer sm.Stop()

	if err := rootCmd.ExecuteContext(sm.Context()); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		sm.Stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "weave.yaml", "Project file to load")
	rootCmd.PersistentFlags().String("scripts", "scripts.yaml", "Script command config, relative to the project")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level=debug")
}

// projectPath prefers an explicit --file over a positional argument.
func projectPath(cmd *cobra.Command, args []string) string {
	path, _ := cmd.Flags().GetString("file")
	if !cmd.Flags().Changed("file") && len(args) > 0 {
		path = args[0]
	}
	return path
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		return logging.New(slog.LevelDebug), nil
	}
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// loaderOptions wires the process script runner configured next to the
// project and the console device.
func loaderOptions(cmd *cobra.Command, path string, logger *slog.Logger) ([]file.LoaderOption, error) {
	scriptsPath, _ := cmd.Flags().GetString("scripts")
	dir := filepath.Dir(path)
	if !filepath.IsAbs(scriptsPath) {
		scriptsPath = filepath.Join(dir, scriptsPath)
	}
	scripts, err := process.LoadScripts(scriptsPath)
	if err != nil {
		return nil, err
	}
	if len(scripts) > 0 {
		logger.Debug("scripts configured", "path", scriptsPath, "count", len(scripts))
	}
	scriptRunner := process.NewRunner(process.WithScripts(scripts), process.WithBaseDir(dir))
	return []file.LoaderOption{
		file.WithScripts(scriptRunner),
		file.WithDevice("console", &consoleDevice{logger: logger}),
	}, nil
}

// openHost loads the project named on the command line.
func openHost(cmd *cobra.Command, args []string, opts ...weave.Option) (*weave.Host, *slog.Logger, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	path := projectPath(cmd, args)
	loaderOpts, err := loaderOptions(cmd, path, logger)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]weave.Option{
		weave.WithLogger(logger),
		weave.WithLoaderOptions(loaderOpts...),
	}, opts...)
	h, err := weave.Open(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return h, logger, nil
}
