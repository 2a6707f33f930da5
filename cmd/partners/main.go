package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "partners",
		Short:         "Partners - affiliate programs, commissions and payouts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(previewEmailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
