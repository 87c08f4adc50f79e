package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/framechat-server/internal/app"
	"github.com/vovakirdan/framechat-server/internal/config"
	"github.com/vovakirdan/framechat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:          "framechat-server",
		Short:        "Framed-TCP chat server with rooms and private messages",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info")

			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags set explicitly win over file and env values.
			applyFlagOverrides(cmd, &cfg, overrides)

			logger := log.New(cfg.LogLevel)
			logger.Info().
				Str("config", path).
				Str("addr", cfg.Addr).
				Str("http_addr", cfg.HTTPAddr).
				Bool("tls", cfg.TLSEnabled()).
				Msg("starting framechat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", defaults.Addr, "TCP listen address")
	cmd.Flags().StringVar(&overrides.HTTPAddr, "http-addr", defaults.HTTPAddr, "HTTP/WebSocket listen address")
	cmd.Flags().StringVar(&overrides.TLSCert, "tls-cert", "", "path to TLS certificate")
	cmd.Flags().StringVar(&overrides.TLSKey, "tls-key", "", "path to TLS private key")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", defaults.DatabasePath, "path to message log database (empty disables)")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&overrides.MaxBodyBytes, "max-body-bytes", defaults.MaxBodyBytes, "maximum frame body size")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "graceful shutdown timeout")

	return cmd
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, overrides config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Addr = overrides.Addr
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if cmd.Flags().Changed("tls-cert") {
		cfg.TLSCert = overrides.TLSCert
	}
	if cmd.Flags().Changed("tls-key") {
		cfg.TLSKey = overrides.TLSKey
	}
	if cmd.Flags().Changed("db") {
		cfg.DatabasePath = overrides.DatabasePath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = overrides.LogLevel
	}
	if cmd.Flags().Changed("max-body-bytes") {
		cfg.MaxBodyBytes = overrides.MaxBodyBytes
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = overrides.ShutdownTimeout
	}
}
