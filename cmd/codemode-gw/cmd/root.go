// Package cmd provides the CLI commands for Codemode Gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codemode-gw/codemode/internal/config"
)

var cfgFile string
var stateFilePath string

var rootCmd = &cobra.Command{
	Use:   "codemode-gw",
	Short: "Codemode Gateway - TypeScript code-execution MCP gateway",
	Long: `Codemode Gateway fronts a set of upstream MCP servers with a single
downstream MCP surface: instead of one tool per upstream tool, it exposes
list_functions, get_function_details, and execute, and lets an agent write
TypeScript that calls upstream tools as plain function calls.

Quick start:
  1. Create a config file: codemode-gw.yaml
  2. Run: codemode-gw start

Configuration:
  Config is loaded from codemode-gw.yaml in the current directory,
  $HOME/.codemode-gw/, or /etc/codemode-gw/.

  Environment variables can override config values with the CODEMODE_GW_ prefix.
  Example: CODEMODE_GW_SERVER_HTTP_ADDR=:9090

Commands:
  start            Start the gateway
  stop             Stop the running gateway
  reset            Reset local state (remove state.json)
  validate-config  Validate a configuration file without starting the gateway
  version          Print version information`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./codemode-gw.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFilePath, "state", "", "path to state.json file (default: ./state.json)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
