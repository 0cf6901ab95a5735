package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haitch/go-asyncstep"
	"github.com/haitch/go-asyncstep/config"
	"github.com/haitch/go-asyncstep/observe"
)

var (
	cfgFile      string
	outputFormat string
	metricsAddr  string
	verbosity    int
	timeout      time.Duration
	pollInterval time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stepwait",
	Short: "Wait for HTTP endpoints and databases to reach an expected state",
	Long: `stepwait polls HTTP endpoints and SQL databases until their answer matches the expected
state, or the timeout is exhausted. Every check is reported as a step, with its attempts and duration.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default from ASYNCSTEP_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or dot")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "log verbosity, step lifecycle is logged at 1")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "default timeout of a check")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "interval", 0, "default polling interval of a check")
}

// runtime is what every subcommand needs to run steps and report them.
type runtime struct {
	cfg      *config.Config
	logger   logr.Logger
	executor *asyncstep.Executor
	recorder *asyncstep.TraceRecorder
	metrics  *observe.MetricsObserver
	registry *prometheus.Registry
	server   *http.Server
}

// loadConfig reads the config file and environment, then applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = loader.LoadFromFile(cfgFile)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Step.Timeout = timeout
	}
	if flags.Changed("interval") {
		cfg.Step.PollInterval = pollInterval
	}
	if flags.Changed("verbosity") {
		cfg.Log.Verbosity = verbosity
	}
	return cfg, cfg.Validate()
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	stdr.SetVerbosity(cfg.Log.Verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("stepwait")

	registry := prometheus.NewRegistry()
	metricsConfig := observe.DefaultMetricsConfig()
	metricsConfig.Registry = registry
	metrics, err := observe.NewMetricsObserver(metricsConfig)
	if err != nil {
		return nil, err
	}

	recorder := asyncstep.NewTraceRecorder()
	bus := asyncstep.NewBus(logger,
		asyncstep.WithObserver(recorder),
		asyncstep.WithObserver(metrics),
		asyncstep.WithObserver(observe.NewLogObserver(logger)))

	executor, err := asyncstep.NewExecutorFromConfig(bus, logger, cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		executor: executor,
		recorder: recorder,
		metrics:  metrics,
		registry: registry,
	}
	if metricsAddr != "" {
		rt.serveMetrics(metricsAddr)
	}
	return rt, nil
}

// containerOptions are shared by every resource container of a command.
func (rt *runtime) containerOptions() []asyncstep.ContainerOptionPreparer {
	return []asyncstep.ContainerOptionPreparer{
		asyncstep.FromConfig(rt.cfg),
		asyncstep.WithContainerLogger(rt.logger),
		asyncstep.WithStopHook(rt.metrics.StopHook()),
	}
}

func (rt *runtime) serveMetrics(addr string) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	rt.server = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		rt.logger.Info("serving metrics", "addr", addr)
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error(err, "metrics server failed")
		}
	}()
}

// finish renders the recorded steps and shuts the metrics server down. runErr is returned as is.
func (rt *runtime) finish(cmd *cobra.Command, runErr error) error {
	if err := renderSteps(cmd.OutOrStdout(), rt.recorder, outputFormat); err != nil {
		return errors.Join(runErr, fmt.Errorf("rendering steps: %w", err))
	}

	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.server.Shutdown(ctx); err != nil {
			rt.logger.Error(err, "stopping metrics server")
		}
	}
	return runErr
}
