package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcache/rcache/internal/config"
	"github.com/rcache/rcache/internal/rclog"
	"github.com/rcache/rcache/internal/rcacheserver"
)

var (
	cacheSize   int
	adminListen string
	logLevel    string
	logFile     string
)

var serverCmd = &cobra.Command{
	Use:   "server <host:port>",
	Short: "Run the rcache server",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			if err := config.LoadFile(configPath, &cfg); err != nil {
				return err
			}
		}

		cfg.Listen = args[0]
		if c.Flags().Changed("cache_size") {
			cfg.CacheSize = cacheSize
		}
		if c.Flags().Changed("admin_addr") {
			cfg.AdminListen = adminListen
		}
		if c.Flags().Changed("log_level") {
			cfg.LogLevel = logLevel
		}
		if c.Flags().Changed("log_file") {
			cfg.LogFile = logFile
		}

		log, err := rclog.New(rclog.Options{Level: cfg.LogLevel, Stdout: true, Filename: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := rcacheserver.New(cfg, log)
		return srv.Run(ctx)
	},
}

func init() {
	serverCmd.Flags().IntVar(&cacheSize, "cache_size", config.DefaultCacheSize, "maximum number of cache entries")
	serverCmd.Flags().StringVar(&adminListen, "admin_addr", "127.0.0.1:11312", "admin HTTP listen address (metrics, stats, healthz)")
	serverCmd.Flags().StringVar(&logLevel, "log_level", "info", "log level: debug, info, warn, error")
	serverCmd.Flags().StringVar(&logFile, "log_file", "", "optional rotated log file path")
}
