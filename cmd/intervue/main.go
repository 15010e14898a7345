package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "intervue",
	Short:         "AI mock interview service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "act as this user ID (default: the configured dev user)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
