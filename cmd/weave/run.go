package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/aretw0/weave/pkg/adapters/redis"
	"github.com/aretw0/weave/pkg/persistence/middleware"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/runner"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [project]",
	Short: "Tick the project until interrupted",
	Long:  `Loads the project and evaluates it on a fixed interval. With --watch, edits to the project or its embedded files are reconciled live.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []weave.Option
		store, closeStore, err := storeFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if store != nil {
			opts = append(opts, weave.WithStore(store))
		}

		h, logger, err := openHost(cmd, args, opts...)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if store != nil {
			resumed, err := h.Resume(ctx)
			if err != nil {
				return err
			}
			if len(resumed) > 0 {
				logger.Info("instances resumed", "ids", resumed)
			}
		}

		procedures, _ := cmd.Flags().GetStringSlice("procedure")
		for _, name := range procedures {
			if _, err := h.Start(ctx, name); err != nil {
				return err
			}
		}

		runOpts, err := runnerOptions(cmd, h)
		if err != nil {
			return err
		}
		runOpts = append(runOpts, runner.WithLogger(logger))

		err = runner.Run(ctx, h, runOpts...)
		printOutputs(cmd.OutOrStdout(), h.Outputs())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunnerFlags(runCmd)
	runCmd.Flags().Uint64P("ticks", "n", 0, "Stop after this many ticks (0 runs until interrupted)")
	runCmd.Flags().StringSliceP("procedure", "p", nil, "Procedures to start before the first tick")
	runCmd.Flags().String("redis", "", "Redis address for instance snapshots (e.g. localhost:6379)")
}

func addRunnerFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("interval", runner.DefaultInterval, "Time between ticks")
	cmd.Flags().BoolP("watch", "w", false, "Reload the project and its embedded files when they change")
}

func runnerOptions(cmd *cobra.Command, h *weave.Host) ([]runner.Option, error) {
	interval, _ := cmd.Flags().GetDuration("interval")
	opts := []runner.Option{runner.WithInterval(interval)}

	if cmd.Flags().Lookup("ticks") != nil {
		ticks, _ := cmd.Flags().GetUint64("ticks")
		opts = append(opts, runner.WithTicks(ticks))
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		logger, err := newLogger(cmd)
		if err != nil {
			return nil, err
		}
		changes, err := file.NewWatcher(h.Files(), file.WithWatcherLogger(logger)).Watch(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to watch project: %w", err)
		}
		opts = append(opts, runner.WithReload(changes))
	}
	return opts, nil
}

// snapshotKeyEnv holds a hex AES-256 key; when set, snapshots are sealed at rest.
const snapshotKeyEnv = "WEAVE_SNAPSHOT_KEY"

func storeFromFlags(cmd *cobra.Command) (ports.InstanceStore, func(), error) {
	addr, _ := cmd.Flags().GetString("redis")
	if addr == "" {
		return nil, func() {}, nil
	}
	backend := redis.New(addr, "", 0)
	closeStore := func() { _ = backend.Close() }

	rawKey := os.Getenv(snapshotKeyEnv)
	if rawKey == "" {
		return backend, closeStore, nil
	}
	key, err := hex.DecodeString(rawKey)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("%s: %w", snapshotKeyEnv, err)
	}
	sealed, err := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("%s: %w", snapshotKeyEnv, err)
	}
	return middleware.Chain(backend, sealed), closeStore, nil
}

func printOutputs(w io.Writer, outputs schema.Values) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s = %s\n", name, outputs[name].String())
	}
}
