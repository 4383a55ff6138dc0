package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Certificate utilities",
	Long:  `Utilities for generating and inspecting certificates used by modtls.`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
