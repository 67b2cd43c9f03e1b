package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard"
)

var (
	verbose    bool
	logFormat  string
	configPath string
	serverURL  string
	token      string

	cfg pinboard.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pinboard",
	Short: "Colored sticky notes behind a small HTTP API",
	Long: `pinboard stores short notes tagged with a color label.
Run "pinboard serve" to start the API, then manage notes from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			fatal("Error loading config", err)
		}

		level := slog.LevelInfo
		if strings.EqualFold(cfg.Log.Level, "debug") || verbose {
			level = slog.LevelDebug
		}
		format := cfg.Log.Format
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if strings.EqualFold(format, "json") {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	},
}

// loadConfig reads --config, else the nearest pinboard.yaml, else defaults and env only.
func loadConfig() (pinboard.Config, error) {
	path := configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			if found, err := pinboard.FindConfig(wd); err == nil {
				path = found
			}
		}
	}
	c, err := pinboard.LoadConfig(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pinboard.yaml (default: nearest one upwards)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (default: server.base_url)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PINBOARD_TOKEN"), "Session token sent as a Bearer credential")
}
