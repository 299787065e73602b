package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "hostbridge",
	Short: "Hostbridge mounts reactive view trees into a host store",
	Long: `Hostbridge drives a reactive view tree from a host's frame tick.
The run command simulates a host and serves an inspection endpoint.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Directory searched for hostbridge.yaml or hostbridge.toml")
	rootCmd.PersistentFlags().String("config", "", "Explicit configuration file (overrides --dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig resolves the configuration for cmd from its persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dir, _ := cmd.Flags().GetString("dir")

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadOptional(dir)
	}
	if err != nil {
		return config.Config{}, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	return logging.New(level)
}
