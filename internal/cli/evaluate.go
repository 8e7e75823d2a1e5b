package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/judgepay-labs/judgepay/internal/domain"
)

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateReject, "reject", false, "Reject the submission instead of approving it")
	rootCmd.AddCommand(evaluateCmd)
}

var evaluateReject bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate TASK_ID",
	Short: "Vote on a submitted task",
	Long: `Cast an approve (default) or reject vote. Single-evaluator tasks
settle on the first vote; quorum tasks settle once enough approvals
accumulate, or dispute on the first rejection.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
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

	task, err := c.Evaluate(cmd.Context(), id, account, !evaluateReject)
	if err != nil {
		return err
	}

	switch task.Status {
	case domain.TaskCompleted:
		fmt.Printf("Task %d completed: %d tokens released to %s\n", task.ID, task.Amount, task.Worker)
	case domain.TaskRefunded:
		fmt.Printf("Task %d rejected: %d tokens refunded to %s\n", task.ID, task.Amount, task.Requester)
	case domain.TaskDisputed:
		fmt.Printf("Task %d disputed: funds remain in escrow\n", task.ID)
	default:
		fmt.Printf("Vote recorded for task %d (%d/%d approvals)\n",
			task.ID, task.CurrentApprovals, task.RequiredApprovals)
	}
	return nil
}
