// Command pilot runs browser and API test suites with self-healing retries.
package main

import (
	"fmt"
	"os"

	"testpilot/internal/config"
	"testpilot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "testpilot - declarative browser and API tests with self-healing",
	Long: `testpilot drives a live browser through declarative UI steps, validates
HTTP APIs, repairs failing UI steps once through a healer and reports an
order-preserving result set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = zapcore.DebugLevel.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return logging.Initialize(cfg.Logging.Settings())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "testpilot.yaml", "Config file (missing file = defaults)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
