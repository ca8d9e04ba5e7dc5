package main

import (
	"fmt"

	"github.com/aretw0/forge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of forge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "forge version %s\n", forge.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
