package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(claimCmd)
}

var claimCmd = &cobra.Command{
	Use:   "claim TASK_ID",
	Short: "Claim an open task as its worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

func runClaim(cmd *cobra.Command, args []string) error {
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

	task, err := c.ClaimTask(cmd.Context(), id, account)
	if err != nil {
		return err
	}
	fmt.Printf("Claimed task %d as %s (deadline %s)\n",
		task.ID, account, task.Deadline.Format("2006-01-02 15:04"))
	return nil
}
