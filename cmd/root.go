// Package cmd builds the train-spotter command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/train-spotter/cmd/history"
	"github.com/tphakala/train-spotter/cmd/realtime"
	"github.com/tphakala/train-spotter/cmd/replay"
	"github.com/tphakala/train-spotter/cmd/roi"
	"github.com/tphakala/train-spotter/internal/buildinfo"
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/logger"
)

// RootCommand creates and returns the root command. Settings are loaded
// before any subcommand runs, so subcommands share one *conf.Settings that
// is filled in by then.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "train-spotter",
		Short:         "Train and vehicle event analytics for a fixed camera",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		realtime.Command(settings, info),
		replay.Command(settings),
		roi.Command(settings),
		history.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		*settings = *loaded
		if debug {
			settings.Main.Debug = true
		}

		central, err = initLogging(settings)
		return err
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if central == nil {
			return nil
		}
		_ = central.Flush()
		return central.Close()
	}

	return rootCmd
}

// initLogging installs the configured central logger as the global one.
func initLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Main.Log
	if settings.Main.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}
