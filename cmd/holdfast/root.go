package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/holdfast/internal/config"
	"github.com/aretw0/holdfast/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "holdfast",
	Short: "Holdfast hands out one exclusive lock among a pool of sessions",
	Long: `Holdfast keeps a pool of named sessions, lets at most one of them hold an
exclusive lock at a time, releases stale locks automatically and streams every
change to WebSocket observers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")

		loaded, err := config.Load(path, envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}

		l, err := logging.NewFromConfig(loaded.LogFormat, loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
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
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("env-file", ".env", "Path to a .env file (ignored when missing)")
	flags.String("store", "", "Store driver: memory, file or redis")
	flags.String("store-dir", "", "Directory of the file store")
	flags.String("redis-addr", "", "Redis address for the redis store")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
}

// applyFlags overlays explicitly set flags on top of the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	set := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	set("store", &c.StoreDriver)
	set("store-dir", &c.StoreDir)
	set("redis-addr", &c.RedisAddr)
	set("log-level", &c.LogLevel)
	set("log-format", &c.LogFormat)
	set("addr", &c.Addr)
	set("api-key", &c.APIKey)
}
