// Command paysign signs and verifies payment notifications with the shared
// webhook secret. Useful for replaying a notification by hand or checking a
// captured payload.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paysign",
		Short:         "Sign and verify payment notifications",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("secret", "", "shared webhook secret (default $PAYMENT_WEBHOOK_SECRET)")

	root.AddCommand(signCmd())
	root.AddCommand(verifyCmd())
	return root
}
