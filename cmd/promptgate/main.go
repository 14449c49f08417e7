package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "promptgate",
		Short:         "Policy-enforcing gateway for LLM prompts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to promptgate config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newKeygenCmd(),
		newTokenCmd(&configPath),
		newCredentialCmd(&configPath),
		newBlacklistCmd(&configPath),
		newLedgerCmd(&configPath),
	)
	return root
}
