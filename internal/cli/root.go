// Package cli implements the xueban command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/daemon"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xueban",
	Short: "XP ledger, badges and bounty escrow for study communities",
	Long: `Xueban keeps the XP balance and level of every community member,
awards badges for contributions, and escrows XP bounties until an answer
is accepted.

Run 'xueban serve' to start the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XUEBAN_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config selected by --config.
func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(cfgFile)
}

// openDaemon builds the services for one-shot commands. Logging is quiet
// unless the config asks for debug output.
func openDaemon(ctx context.Context) (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	if logCfg.Level != "debug" {
		logCfg.Level = "warn"
	}
	logger, err := daemon.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return d, nil
}

// withDaemon runs fn against freshly opened services and closes them after.
func withDaemon(cmd *cobra.Command, fn func(ctx context.Context, d *daemon.Daemon) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openDaemon(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}

func newLogger(cfg daemon.Config) (*zap.Logger, error) {
	return daemon.NewLogger(cfg.Log)
}
