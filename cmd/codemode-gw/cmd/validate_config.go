package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codemode-gw/codemode/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a configuration file without starting the gateway",
	Long: `Load and validate a codemode-gw configuration file: checks struct tags
(required fields, URL/duration formats), unique upstream names, and that
every policy rule's condition compiles as CEL. Exits non-zero on the first
validation failure, without connecting to any upstream.

Examples:
  codemode-gw validate-config
  codemode-gw --config ./codemode-gw.yaml validate-config`,
	RunE: runValidateConfig,
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return err
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration is invalid:")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}

	if err := validatePolicyConditions(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "configuration is invalid:")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}

	if configFile := config.ConfigFileUsed(); configFile != "" {
		fmt.Printf("config file: %s\n", configFile)
	} else {
		fmt.Println("config file: none found (env vars and defaults only)")
	}
	fmt.Printf("upstreams: %d\n", len(cfg.Servers))
	fmt.Printf("policy rules: %d\n", len(cfg.Policy.Rules))
	fmt.Printf("rate limiting: %v\n", cfg.RateLimit.Enabled)
	fmt.Println("configuration is valid")
	return nil
}

// validatePolicyConditions compiles every configured policy rule's CEL
// condition, the same check buildPolicyGate performs at start time, so a
// bad expression is caught here instead of at first execute.
func validatePolicyConditions(cfg *config.GatewayConfig) error {
	if len(cfg.Policy.Rules) == 0 {
		return nil
	}
	gate, err := buildPolicyGate(cfg)
	_ = gate
	return err
}
