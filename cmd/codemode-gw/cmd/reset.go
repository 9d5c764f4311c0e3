package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset codemode-gw to a clean state",
	Long: `Reset codemode-gw by removing its persistent state file.

state.json (and its backup) track reset/lifecycle bookkeeping only — the
function catalog, upstream connections, and policy gate are all rebuilt
from the YAML config on every start, so removing it never discards
config-derived state.

Optional flags:
  --force   Skip confirmation prompt

Examples:
  # Reset state only (interactive confirmation)
  codemode-gw reset

  # Reset without prompting
  codemode-gw reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	statePath := stateFilePath
	if statePath == "" {
		statePath = os.Getenv("CODEMODE_GW_STATE_PATH")
	}
	if statePath == "" {
		statePath = "./state.json"
	}

	type target struct {
		path string
		desc string
	}
	targets := []target{
		{statePath, "state file"},
		{statePath + ".bak", "state backup"},
	}

	var existing []target
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}

	if len(existing) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reset — no state files found.")
		return nil
	}

	fmt.Fprintln(os.Stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(os.Stderr, "\nProceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	var errors int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(os.Stderr, "  ERROR removing %s: %v\n", t.path, err)
			errors++
		} else {
			fmt.Fprintf(os.Stderr, "  Removed %s\n", t.path)
		}
	}

	if errors > 0 {
		return fmt.Errorf("%d file(s) could not be removed", errors)
	}

	fmt.Fprintln(os.Stderr, "\nReset complete. codemode-gw will start fresh on next launch.")
	return nil
}
