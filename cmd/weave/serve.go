package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/weave"
	httpAdapter "github.com/aretw0/weave/internal/adapters/http"
	"github.com/aretw0/weave/pkg/observability"
	"github.com/aretw0/weave/pkg/runner"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [project]",
	Short: "Run the project behind an HTTP control API",
	Long:  `Ticks the project like run and serves its outputs, procedures, instances and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		metrics := observability.NewMetrics()
		h, logger, err := openHost(cmd, args, weave.WithLifecycleHooks(metrics.Hooks()))
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr: ":" + port,
			Handler: httpAdapter.NewHandler(h,
				httpAdapter.WithMetrics(metrics.Handler()),
				httpAdapter.WithLogger(logger)),
			ReadHeaderTimeout: 5 * time.Second,
		}

		runOpts, err := runnerOptions(cmd, h)
		if err != nil {
			return err
		}
		runOpts = append(runOpts, runner.WithLogger(logger))

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr, "graph", h.Name())
			serverErrors <- srv.ListenAndServe()
		}()

		runErrors := make(chan error, 1)
		go func() {
			runErrors <- runner.Run(ctx, h, runOpts...)
		}()

		var result error
		select {
		case err := <-serverErrors:
			result = fmt.Errorf("server error: %w", err)
			cancel()
			<-runErrors
		case err := <-runErrors:
			if err != nil && !errors.Is(err, context.Canceled) {
				result = err
			}
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		logger.Info("server stopped")
		return result
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addRunnerFlags(serveCmd)
	serveCmd.Flags().StringP("port", "P", "8080", "Port to listen on")
}
