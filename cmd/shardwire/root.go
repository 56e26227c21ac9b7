package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apphandlers "github.com/drblury/shardwire/internal/app/handlers"
	runtimepkg "github.com/drblury/shardwire/internal/runtime"
	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/commands"
	"github.com/drblury/shardwire/internal/runtime/config"
	"github.com/drblury/shardwire/internal/runtime/diagnostics"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
)

var (
	configDir  string
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "shardwire",
	Short:        "Run the gateway bot",
	Long:         `Scans the bundled handlers, requests exactly the gateway intents they need and runs every shard until interrupted.`,
	SilenceUsage: true,
	RunE:         runBot,
}

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the bundled handlers and the intents they require",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printHandlers(cmd.OutOrStdout(), catalog.DefaultRegistry)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "d", ".",
		"directory holding config.json and config.debug.json")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file replacing <config-dir>/config.json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"merge config.debug.json over the base config")
	rootCmd.Flags().String("token", "", "gateway token (overrides discord.token)")
	rootCmd.Flags().String("transport", "", "transport name (overrides transport.pubsub_system)")

	rootCmd.AddCommand(handlersCmd)
}

func setVersion(v string) {
	rootCmd.Version = v
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	_ = v.BindPFlag("discord.token", cmd.Flags().Lookup("token"))
	_ = v.BindPFlag("transport.pubsub_system", cmd.Flags().Lookup("transport"))
	return config.Load(v, config.LoadOptions{Dir: configDir, File: configFile, Debug: debug})
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := loggingpkg.Setup(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer func() { _ = closer.Close() }()
	apphandlers.SetLogger(logger)
	logger.Info("Configuration loaded", loggingpkg.LogFields{"config": cfg.String(), "version": cmd.Root().Version})

	shutdownTracing, err := telemetry.SetupTracing(telemetry.TracingOptions{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var metrics *telemetry.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if metrics, err = telemetry.NewMetrics(registry); err != nil {
			return err
		}
	}

	hooks := gateway.LoggingHooks(logger).Merge(gateway.MetricsHooks(metrics))
	seq, err := runtimepkg.NewSequencer(runtimepkg.Dependencies{
		Connector: &runtimepkg.GatewayConnector{
			Config:   cfg,
			Commands: commands.DefaultRegistry,
			Hooks:    hooks,
			Metrics:  metrics,
			Logger:   logger,
		},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	server := telemetry.NewServer(logger)
	server.Handle(cfg.Metrics.Port, "/status", seq.StatusHandler())
	if cfg.Metrics.Enabled {
		server.HandleMetrics(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer func() { _ = server.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seq.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printHandlers scans module without connecting and writes its entries,
// the aggregated intents and any diagnostics.
func printHandlers(w io.Writer, module catalog.Module) error {
	collector := diagnostics.NewCollector()
	cat, err := catalog.Scan(module, collector)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLER\tEVENT\tINTENTS")
	for _, e := range cat.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Handler, e.Event, e.Intents)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	caps := gateway.CapabilitiesFor(cat)
	fmt.Fprintf(w, "\nintents: %s\n", caps.Intents())
	if p := caps.Intents().Privileged(); p != 0 {
		fmt.Fprintf(w, "privileged: %s\n", p)
	}
	for _, d := range collector.All() {
		fmt.Fprintf(w, "diagnostic: %v\n", d)
	}
	return nil
}
