package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TaIos/mod-tls/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file and run the same validation the server
runs at startup, without compiling policies or touching certificates.

Examples:
  # Validate the default config
  modtls validate

  # Validate a specific file
  modtls validate --config /etc/modtls/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s is valid: %d listeners, %d vhosts\n", cfgFile, len(cfg.Listen), len(cfg.VHosts))
	return nil
}
