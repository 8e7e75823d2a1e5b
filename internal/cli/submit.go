package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/judgepay-labs/judgepay/internal/commit"
)

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Read the output from a file instead of the argument")
	rootCmd.AddCommand(submitCmd)
}

var submitFile string

var submitCmd = &cobra.Command{
	Use:   "submit TASK_ID [OUTPUT]",
	Short: "Submit work for a claimed task",
	Long: `Submit the completed output for a task you claimed. Only the
Keccak-256 commitment and the byte length go on the ledger; deliver the
content itself to the requester out of band and keep a copy — the
commitment is how they verify what you delivered.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	var output string
	switch {
	case submitFile != "":
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return fmt.Errorf("read output file: %w", err)
		}
		output = string(data)
	case len(args) == 2:
		output = args[1]
	default:
		return fmt.Errorf("provide the output as an argument or via --file")
	}

	account, err := actingAccount()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	digest, length := commit.Hash(output)
	task, err := c.SubmitWork(cmd.Context(), id, account, digest.String(), length)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted work for task %d [%s]\n", task.ID, task.Status)
	fmt.Printf("  Commitment: %s (%d bytes)\n", digest, length)
	return nil
}
