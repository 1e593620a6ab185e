package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scheduler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scheduler %s\n", version)
	},
}
