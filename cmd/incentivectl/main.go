// Command incentivectl evaluates performance exports against scheme files
// without running the server.
//
//	incentivectl validate schemes.yaml
//	incentivectl evaluate --schemes schemes.yaml --file-a a.csv --file-b b.csv --key-a 사원번호
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "incentivectl",
		Short:         "Offline tools for the incentive engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "YAML configuration file (resolver suffixes, aliases, total policy)")

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newValidateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
