package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rizwank123/emergency_dispatch/internal/config"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Emergency notification dispatcher",
	Long: `Routes emergency notifications to users over SMS, e-mail and push,
most urgent first, falling back across each user's preferred channels.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is ./.env)")
	rootCmd.AddCommand(sendCmd, serveCmd)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if envFile != "" {
		cfg, err = config.LoadFile(envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays free for command output.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
