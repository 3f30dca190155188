package main

import (
	"fmt"

	"github.com/aretw0/holdfast"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of holdfast",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("holdfast version %s\n", holdfast.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
