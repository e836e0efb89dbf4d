package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/zombar/monitorclient/internal/api"
	"github.com/zombar/monitorclient/internal/config"
	"github.com/zombar/monitorclient/internal/metrics"
	"github.com/zombar/monitorclient/internal/tracing"
	"github.com/zombar/monitorclient/internal/view"
	"github.com/zombar/monitorclient/pkg/logging"
)

const metricsNamespace = "monitorclient"

// app is the state shared by all commands once flags are parsed
type app struct {
	cfgFile    string
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	client     *api.Client
	controller *view.Controller
	cleanup    []func(context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "monitorclient",
		Short: "Client for the monitoring analysis backend",
		Long: `monitorclient talks to the analysis backend: it analyzes text and images,
parses demo pages and browses the request history.

Examples:
  monitorclient text "Рынок растёт третий квартал подряд"
  monitorclient image screenshot.png
  monitorclient parse https://example.com
  monitorclient history show 1
  monitorclient tui`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .monitorclient.yaml)")
	flags.String("origin", "", "page origin the backend address is resolved from (env: MONITOR_API_ORIGIN)")
	flags.String("base-url", "", "backend address, overrides --origin (env: MONITOR_API_BASE_URL)")
	flags.Duration("timeout", 0, "request timeout, 0 for none (env: MONITOR_API_TIMEOUT)")
	flags.String("log-level", "", "debug, info, warn or error (env: MONITOR_LOGGING_LEVEL)")
	flags.String("log-format", "", "text or json (env: MONITOR_LOGGING_FORMAT)")
	flags.String("log-file", "", "write logs to this file (env: MONITOR_LOGGING_FILE)")

	rootCmd.AddCommand(newTextCmd(a))
	rootCmd.AddCommand(newImageCmd(a))
	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newHealthCmd(a))
	rootCmd.AddCommand(newTUICmd(a))
	rootCmd.AddCommand(newBatchCmd(a))

	return rootCmd
}

// setup loads configuration and builds the logger, tracer, metrics and client
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{ConfigFile: a.cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg

	// The terminal UI owns the screen, so it only logs to a file
	var logOut io.Writer = cmd.ErrOrStderr()
	if cmd.Name() == "tui" {
		logOut = io.Discard
	}
	logger, closer, err := logging.New(cfg.LogOptions(), logOut)
	if err != nil {
		return err
	}
	a.logger = logger
	a.cleanup = append(a.cleanup, func(context.Context) error { return closer.Close() })
	slog.SetDefault(logger)

	tp, err := tracing.InitTracer(cmd.Context(), cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		a.cleanup = append(a.cleanup, tp.Shutdown)
	}

	a.registry = newRegistry()

	a.client, err = api.New(cfg.BaseURL(),
		api.WithLogger(logger),
		api.WithMetrics(metrics.NewClientMetrics(metricsNamespace, a.registry)),
		api.WithTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return err
	}
	a.controller = view.NewController(a.client, logger)

	logger.Debug("client configured", "base_url", a.client.BaseURL(), "timeout", cfg.API.Timeout)
	return nil
}

// newRegistry returns a registry with the Go runtime and process collectors
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// close releases everything setup acquired, newest first
func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](context.Background()); err != nil && a.logger != nil {
			a.logger.Error("cleanup failed", "error", err)
		}
	}
	a.cleanup = nil
}

// printOutput writes the visible region: results to stdout, errors to stderr.
// A shown error makes the command fail with errShown.
func printOutput(cmd *cobra.Command, out view.Output) error {
	switch {
	case out.ErrorVisible:
		fmt.Fprintln(cmd.ErrOrStderr(), out.Error)
		return errShown
	case out.ResultVisible:
		fmt.Fprint(cmd.OutOrStdout(), out.Result)
	}
	return nil
}
