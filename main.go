package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pccr10001/callscreen/internal/auth"
	"github.com/pccr10001/callscreen/internal/config"
	"github.com/pccr10001/callscreen/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"

	rootCmd = &cobra.Command{
		Use:   "callscreen",
		Short: "Caller-ID screening for Hayes voice modems",
		Long: `callscreen listens for caller-ID reports on a voice modem and hangs up on
numbers and names found in the blacklist files.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(atCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// Restore default handling after the first signal so a second one kills.
	context.AfterFunc(ctx, stop)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if err := config.LoadConfig(cfgFile); err != nil {
		return err
	}
	cfg := &config.AppConfig
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger.InitLogger(cfg.Log.Level, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	auth.Configure(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "callscreen %s\n", version)
			return nil
		},
	}
}
