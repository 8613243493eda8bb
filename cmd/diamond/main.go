package main

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fortuna/diamond/internal/config"
	"github.com/fortuna/diamond/internal/logger"
)

const (
	serviceName    = "diamond"
	serviceVersion = "1.0.0"
)

var (
	// configFile is set by the --config flag.
	configFile string

	cfg     *config.Config
	rootLog *charmlog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Baseball play-by-play normalization",
	Long: `diamond turns MLB StatsAPI live feeds into game, linescore and
runner_play tables, either as a long-running service or one-shot runs.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(migrateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s v%s\n", serviceName, serviceVersion)
	},
}

// initConfig loads configuration and sets up process logging.
func initConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		loaded.Log.Level = level
	}

	cfg = loaded
	rootLog = logger.Setup(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return nil
}
