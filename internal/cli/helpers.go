package cli

import (
	"fmt"

	"github.com/judgepay-labs/judgepay/internal/api"
	"github.com/judgepay-labs/judgepay/internal/daemon"
	"github.com/judgepay-labs/judgepay/internal/domain"
)

// newClient builds an API client from flags and the on-disk config.
func newClient() (*api.Client, error) {
	if flagServer != "" {
		return api.NewClient(flagServer), nil
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port)), nil
}

// actingAccount resolves the account a command acts as: --account flag
// first, then the configured node account.
func actingAccount() (string, error) {
	if flagAccount != "" {
		return flagAccount, nil
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Node.Account == "" {
		return "", fmt.Errorf("no account configured; pass --account or set [node] account in config")
	}
	return cfg.Node.Account, nil
}

// printTask writes a task summary to stdout.
func printTask(t *domain.Task) {
	fmt.Printf("Task %d [%s]\n", t.ID, t.Status)
	fmt.Printf("  Requester:  %s\n", t.Requester)
	if t.Worker != "" {
		fmt.Printf("  Worker:     %s\n", t.Worker)
	}
	if t.Evaluator != "" {
		fmt.Printf("  Evaluator:  %s\n", t.Evaluator)
	}
	fmt.Printf("  Amount:     %d\n", t.Amount)
	fmt.Printf("  Deadline:   %s\n", t.Deadline.Format("2006-01-02 15:04"))
	fmt.Printf("  Commitment: %s\n", t.DescriptionHash)
	if t.OutputHash != "" {
		fmt.Printf("  Output:     %s (%d bytes)\n", t.OutputHash, t.OutputLength)
	}
	if t.RequiredApprovals > 1 {
		fmt.Printf("  Approvals:  %d/%d\n", t.CurrentApprovals, t.RequiredApprovals)
	}
}
