// Package cmd contains the miner app.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	url     string
	minerID string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the coordinator.")
	rootCmd.PersistentFlags().StringVarP(&minerID, "miner", "m", "miner1", "Identity reported with each solved block.")
}

var rootCmd = &cobra.Command{
	Use:   "miner",
	Short: "A simple CPU miner",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
