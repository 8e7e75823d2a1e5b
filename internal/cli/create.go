package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/judgepay-labs/judgepay/internal/commit"
	"github.com/judgepay-labs/judgepay/internal/domain"
)

func init() {
	createCmd.Flags().Int64Var(&createAmount, "amount", 0, "Escrow amount in tokens (required)")
	createCmd.Flags().Int64Var(&createDeadline, "deadline", 24, "Deadline in hours from now")
	createCmd.Flags().StringVar(&createEvaluator, "evaluator", "", "Designated evaluator (default: the requester)")
	createCmd.Flags().Int64Var(&createMinLen, "min-length", 0, "Minimum output length in bytes")
	createCmd.Flags().Int64Var(&createMaxLen, "max-length", 0, "Maximum output length in bytes (0 = unbounded)")
	createCmd.Flags().IntVar(&createApprovals, "approvals", 0, "Approvals required to settle (>1 enables quorum voting)")
	createCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(createCmd)
}

var (
	createAmount    int64
	createDeadline  int64
	createEvaluator string
	createMinLen    int64
	createMaxLen    int64
	createApprovals int
)

var createCmd = &cobra.Command{
	Use:   "create DESCRIPTION",
	Short: "Fund and create an escrow task",
	Long: `Create a task, depositing the amount into escrow. Only the
Keccak-256 commitment of the description goes on the ledger; the plain
text stays with you. An allowance covering the amount must be approved
first (see 'judgepay approve').`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	account, err := actingAccount()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	digest, _ := commit.Hash(args[0])
	id, err := c.CreateTask(cmd.Context(), account, domain.CreateParams{
		DescriptionHash:   digest.String(),
		Amount:            createAmount,
		DeadlineHours:     createDeadline,
		Evaluator:         createEvaluator,
		MinLength:         createMinLen,
		MaxLength:         createMaxLen,
		RequiredApprovals: createApprovals,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created task %d (escrowed %d tokens)\n", id, createAmount)
	fmt.Printf("  Commitment: %s\n", digest)
	return nil
}
