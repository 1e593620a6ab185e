package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rotaforge/scheduler/internal/keygen"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Mint an API key for the server's run trigger endpoint",
	Long: `keygen prints a freshly minted API key to stdout. Set it as
SCHEDULER_API_KEY on the server and send it in the X-Api-Key header when
triggering runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keygen.New()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}
