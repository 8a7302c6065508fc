package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/cmd"
	"github.com/fluxmail/imapstep/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "imapstep",
		Short:         "Run IMAP mailbox operations as workflow steps",
		Long:          "imapstep exposes IMAP mailbox operations (list, copy, move, delete, flag, download, export) as composable workflow steps that emit structured records on stdout.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(cmd.Commands()...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
