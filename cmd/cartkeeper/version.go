package main

import (
	"fmt"

	"github.com/aretw0/cartkeeper"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cartkeeper",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cartkeeper version %s\n", cartkeeper.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
