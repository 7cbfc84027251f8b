// Package main provides contributectl, the operator CLI of the contribution gateway.
//
// Usage:
//
//	contributectl staff-token --contributor-id 7 --name "Jane Moderator"
//	contributectl reindex --server http://localhost:8080
//	contributectl sessions prune
//	contributectl sessions list --role staff
//	contributectl lookup US2021250D1DTN7
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/logger"
)

var (
	envFile  string
	dataPath string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "contributectl",
	Short: "Operate the Open Supply Hub contribution gateway",
	Long: `contributectl issues staff grants, rebuilds the moderation index and
maintains the gateway's local stores.

Configuration is read the same way as the gateway: flags, then environment
variables, then the .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Gateway data directory (default: DATA_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	sessionsCmd.AddCommand(sessionsPruneCmd)
	sessionsCmd.AddCommand(sessionsListCmd)

	rootCmd.AddCommand(staffTokenCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(lookupCmd)
}

// loadConfig loads the gateway configuration with the persistent flags applied.
func loadConfig() (*config.Config, error) {
	args := []string{"-env-file", envFile, "-log-level", logLevel}
	if dataPath != "" {
		args = append(args, "-data-path", dataPath)
	}
	return config.LoadConfig(args)
}

// newLogger creates a stderr logger so command output stays pipeable.
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
