package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kerbaras/reader/pkg/app"
	"github.com/kerbaras/reader/pkg/config"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	logLevel    string
	metricsAddr string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reader",
	Short: "A paginated reader for manga, novels and episodes",
	Long:  "Browse a library of image, text and video entries with a TUI and CLI, keeping reading progress in sync",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		// Launch TUI by default
		cobra.CheckErr(app.NewApp(ctrl).Run())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultConfigPath()+"/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(unitsCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
}

func setup() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logCfg := logging.Config{Level: cfg.Logging.Level, Service: "reader"}
	if cfg.Logging.File != "" {
		f, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return err
		}
		logCfg.Output = f
	}
	logging.Configure(logCfg)

	if metricsAddr != "" {
		serveMetrics(metricsAddr)
	}
	return nil
}

func serveMetrics(addr string) {
	logger := logging.WithComponent("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
}

func newController() (*services.Controller, error) {
	repo, err := data.Open(cfg.Library.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	registry := services.NewRegistry(cfg, client)
	return services.NewController(repo, registry, cfg, services.WithClient(client)), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
