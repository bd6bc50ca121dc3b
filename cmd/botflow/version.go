package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of botflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("botflow version %s\n", botflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
