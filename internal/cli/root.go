// Package cli implements the JudgePay command-line interface using Cobra.
// Each subcommand maps to one escrow operation (create, claim, submit,
// evaluate, refund) or a supporting token/ledger query. All commands except
// serve talk to a running server over HTTP.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "judgepay",
	Short: "JudgePay — Conditional-payment escrow for evaluated work",
	Long: `JudgePay is an escrow ledger for tasks paid on approval.
A requester funds a task, a worker claims it and submits a content
commitment, and the funds release to the worker or return to the
requester based on evaluator votes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagServer  string
	flagAccount string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "", "Account to act as (default from config)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
