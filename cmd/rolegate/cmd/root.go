// Package cmd provides the CLI commands for RoleGate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RoleGate/rolegate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rolegate",
	Short: "RoleGate - RBAC/ARBAC policy engine",
	Long: `RoleGate is a role-based access control engine with delegated
administration. It resolves role hierarchies, enforces temporal and
separation-of-duty constraints, and answers access-check queries over a
pluggable directory store.

Configuration:
  Config is loaded from rolegate.yaml in the current directory,
  $HOME/.rolegate/, or /etc/rolegate/.

  Environment variables can override config values with the ROLEGATE_
  prefix. Example: ROLEGATE_DIRECTORY_BACKEND=sqlite

Commands:
  check          Answer a one-shot access-check query
  hash-password  Generate an Argon2id hash for a user credential
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rolegate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
