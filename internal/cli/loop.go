package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/judgepay-labs/judgepay/internal/app/lifecycle"
)

func init() {
	loopCmd.Flags().StringVar(&loopRequester, "requester", "", "Requester account (required)")
	loopCmd.Flags().StringVar(&loopWorker, "worker", "", "Worker account (required)")
	loopCmd.Flags().StringVar(&loopEvaluator, "evaluator", "", "Evaluator account (default: the requester)")
	loopCmd.Flags().StringVar(&loopOutput, "output", "", "Output the worker submits (required)")
	loopCmd.Flags().Int64Var(&loopAmount, "amount", 0, "Escrow amount (required)")
	loopCmd.Flags().Int64Var(&loopDeadline, "deadline", 24, "Deadline in hours")
	loopCmd.Flags().BoolVar(&loopReject, "reject", false, "Have the evaluator reject instead of approve")
	loopCmd.MarkFlagRequired("requester")
	loopCmd.MarkFlagRequired("worker")
	loopCmd.MarkFlagRequired("output")
	loopCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(loopCmd)
}

var (
	loopRequester string
	loopWorker    string
	loopEvaluator string
	loopOutput    string
	loopAmount    int64
	loopDeadline  int64
	loopReject    bool
)

var loopCmd = &cobra.Command{
	Use:   "loop DESCRIPTION",
	Short: "Drive one full task lifecycle end to end",
	Long: `Run allowance, create, claim, submit, and evaluate as a single
sequenced workflow, retrying transient transport failures without ever
double-funding or double-paying. Useful for demos and smoke tests
against a running server.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	o := lifecycle.New(c, lifecycle.WithLogf(func(format string, a ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", a...)
	}))

	task, err := o.RunLoop(cmd.Context(), lifecycle.LoopSpec{
		Requester:   loopRequester,
		Worker:      loopWorker,
		Evaluator:   loopEvaluator,
		Description: args[0],
		Output:      loopOutput,
		Amount:      loopAmount,
		DeadlineHrs: loopDeadline,
		Approve:     !loopReject,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	printTask(task)
	return nil
}
