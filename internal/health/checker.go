// Package health runs periodic checks over the escrow ledger's invariants.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/judgepay-labs/judgepay/internal/infra/ledger"
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks over the escrow database.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a health checker with the standard checks:
// storage reachability, double-entry conservation, and escrow solvency.
func NewChecker(db *sqlite.DB) *Checker {
	return &Checker{
		interval: 60 * time.Second,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
			},
			{
				Name: "token_conservation",
				CheckFn: func(ctx context.Context) error {
					return checkConservation(db)
				},
			},
			{
				Name: "escrow_solvency",
				CheckFn: func(ctx context.Context) error {
					return checkSolvency(db)
				},
			},
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// checkConservation verifies double-entry bookkeeping: every debit has a
// matching credit, so the grand totals must be equal.
func checkConservation(db *sqlite.DB) error {
	debits, credits, err := db.EntryTotals()
	if err != nil {
		return fmt.Errorf("read ledger totals: %w", err)
	}
	if debits != credits {
		return fmt.Errorf("ledger out of balance: debits %d, credits %d", debits, credits)
	}
	return nil
}

// checkSolvency verifies the escrow account holds at least what unsettled
// tasks commit it to: deposits for Open, Submitted, and Disputed tasks.
func checkSolvency(db *sqlite.DB) error {
	committed, err := db.EscrowCommitted()
	if err != nil {
		return fmt.Errorf("read committed escrow: %w", err)
	}
	held, err := db.TokenBalance(ledger.EscrowAccount)
	if err != nil {
		return fmt.Errorf("read escrow balance: %w", err)
	}
	if held < committed {
		return fmt.Errorf("escrow insolvent: holds %d, owes %d", held, committed)
	}
	return nil
}
