// Package cli implements the ecoboard command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ecoboard/ecoboard/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ecoboard",
	Short: "Community task board with peer approval and a reward ledger",
	Long: `ecoboard tracks community-submitted tasks through a peer-voting
approval lifecycle. A background settlement sweep moves tasks between
states when vote thresholds are crossed and credits the reward ledger;
balances are spent in the built-in shop.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ecoboard daemon",
	Long:  `Start the HTTP API and the settlement sweep and run until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}
	return daemon.Run(cfg)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".ecoboard", "config.toml")
}
