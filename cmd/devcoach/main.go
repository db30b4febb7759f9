package main

import (
	"fmt"
	"os"

	"github.com/cleaver/open-dev-coach/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "devcoach",
	Short:         "devcoach - a task tracker and check-in coach for developers",
	Long:          `devcoach tracks what you are working on, schedules check-ins and asks an AI coach to nudge you along.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config listen)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("devcoach " + version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
