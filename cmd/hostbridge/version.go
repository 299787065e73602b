package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hostbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hostbridge version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
