package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(eventsCmd)
}

var getCmd = &cobra.Command{
	Use:   "get TASK_ID",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	task, err := c.GetTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	printTask(task)
	return nil
}

var eventsCmd = &cobra.Command{
	Use:   "events TASK_ID",
	Short: "Show a task's event history",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	events, err := c.Events(cmd.Context(), id)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-15s", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Type)
		if ev.Actor != "" {
			line += "  by " + ev.Actor
		}
		if ev.Recipient != "" {
			line += fmt.Sprintf("  %d tokens to %s", ev.Amount, ev.Recipient)
		} else if ev.Amount > 0 {
			line += fmt.Sprintf("  %d tokens", ev.Amount)
		}
		fmt.Println(line)
	}
	return nil
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("task id must be an integer, got %q", s)
	}
	return id, nil
}
