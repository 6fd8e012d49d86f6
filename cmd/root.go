package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evcharge/config"
	coremon "github.com/kilianp07/evcharge/core/monitoring"
	"github.com/kilianp07/evcharge/core/profiles"
	"github.com/kilianp07/evcharge/infra/logger"
	"github.com/kilianp07/evcharge/infra/monitoring"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "evcharge",
	Short:        "EV battery charging simulator",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

// Execute runs the CLI and reports a failing command to the configured
// error tracker.
func Execute() error {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		coremon.CaptureError(err, map[string]string{"command": cmd.Name()})
	}
	coremon.Flush(2 * time.Second)
	_ = logger.CloseFile()
	return err
}

// loadConfig reads the configuration and applies the log level. A missing
// default config file falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.SetLevel(level); err != nil {
		return nil, err
	}
	lc := cfg.Logging
	if err := logger.SetFile(logger.FileOptions{
		Path:       lc.Path,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	}); err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	rep, err := monitoring.NewSentryReporter(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.SetReporter(rep)
	return cfg, nil
}

func newFactory(cfg *config.Config) (*profiles.Factory, error) {
	inv, opts, err := config.LoadInventory(cfg.Inventory)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	if cfg.Fleet.StochasticDegradation {
		opts = append(opts, profiles.WithDegradation(cfg.Fleet.Rand()))
	}
	return profiles.NewFactory(inv, opts...), nil
}
