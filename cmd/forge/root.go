package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/forge/internal/config"
	"github.com/aretw0/forge/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Forge is a chat bot for crafting requests",
	Long: `Forge walks players through a crafting request (character, category, item and
the resources they supply) using transient Discord messages, and records the result.`,
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
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
}

// loadConfig reads .env files and the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	config.LoadEnvFiles()
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat("forge.yaml"); err == nil {
			path = "forge.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(os.Stderr, cfg.Log.Format, level), nil
}
