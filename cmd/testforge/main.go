package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/metrics"
	"github.com/lamim/testforge/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errInvalid makes the process exit non-zero after the report was printed
var errInvalid = errors.New("response did not pass validation")

type globalFlags struct {
	configPath  string
	envFile     string
	verbose     bool
	metricsAddr string
	noColor     bool
}

var flags globalFlags

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "testforge",
		Short: "testforge - turn LLM output into valid test points and test cases",
		Long: `testforge extracts JSON from raw model responses, diagnoses syntax errors,
checks the structure of test point and test case payloads, and repairs every
record into a complete, schema-valid form ready for persistence.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to configuration file (built-in defaults when empty)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Path to environment file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.listen_addr)")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored tables")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRepairCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newSessionsCmd())

	return rootCmd
}

func logLevel() slog.Level {
	if flags.verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig loads the env file and the configuration. Without --config the
// built-in defaults are used and secrets come from the environment only.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Secrets, error) {
	loaded, err := config.LoadEnvFile(flags.envFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	} else if loaded && flags.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Loaded env file: %s\n", flags.envFile)
	}

	if flags.configPath == "" {
		cfg := config.Default()
		secrets, err := config.LoadSecrets()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		return cfg, secrets, nil
	}

	cfg, secrets, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, secrets, nil
}

// startMetrics serves /metrics when an address is configured. The returned
// function shuts the server down.
func startMetrics(cfg *config.Config, logger *slog.Logger) (*metrics.Collector, func()) {
	collector := metrics.NewCollector(logger)

	addr := cfg.Metrics.ListenAddr
	if flags.metricsAddr != "" {
		addr = flags.metricsAddr
	}
	if addr == "" {
		return collector, func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return collector, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func consoleLogger(cmd *cobra.Command) *slog.Logger {
	return writer.NewConsoleLogger(cmd.ErrOrStderr(), logLevel())
}
