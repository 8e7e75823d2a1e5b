package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refundCmd)
}

var refundCmd = &cobra.Command{
	Use:   "refund TASK_ID",
	Short: "Refund an expired task to its requester",
	Long: `Return the escrowed funds of a task whose deadline passed without
settlement. Any account may trigger the refund; the funds always go to
the requester.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefund,
}

func runRefund(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	account, err := actingAccount()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	task, err := c.RefundExpired(cmd.Context(), id, account)
	if err != nil {
		return err
	}
	fmt.Printf("Task %d refunded: %d tokens returned to %s\n", task.ID, task.Amount, task.Requester)
	return nil
}
