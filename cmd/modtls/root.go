package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "modtls",
	Short: "modtls - TLS termination core with per-virtual-host policies",
	Long: `modtls terminates TLS with a policy compiled per virtual host.

Each virtual host carries its own certificates, cipher preferences,
protocol floor and client authentication mode. Connections are
negotiated in two phases: the client hello is captured first, then the
handshake completes under the policy of the server the hello resolved
to. Requests on established connections pass an admission gate that
rejects misdirected or unroutable requests.`,
	Version: version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
