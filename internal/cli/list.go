package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/judgepay-labs/judgepay/internal/domain"
)

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (OPEN, SUBMITTED, COMPLETED, REFUNDED, DISPUTED)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of tasks to show")
	rootCmd.AddCommand(listCmd)
}

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, newest first",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	tasks, err := c.ListTasks(cmd.Context(), domain.TaskStatus(listStatus), listLimit)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks. Run 'judgepay create' to fund one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAMOUNT\tREQUESTER\tWORKER\tDEADLINE")
	for _, t := range tasks {
		worker := t.Worker
		if worker == "" {
			worker = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			t.ID,
			t.Status,
			t.Amount,
			t.Requester,
			worker,
			t.Deadline.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
