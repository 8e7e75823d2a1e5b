// Package domain holds the pure escrow types and sentinel errors.
// A Task is a funded unit of work that flows through the ledger:
// create (escrow funded) → claim → submit → evaluate → settle.
package domain

import "time"

// TaskStatus tracks the task lifecycle. Transitions are one-directional;
// Completed, Refunded and Disputed are terminal and retained for audit.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "OPEN"
	TaskSubmitted TaskStatus = "SUBMITTED"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskRefunded  TaskStatus = "REFUNDED"
	TaskDisputed  TaskStatus = "DISPUTED"
)

// Task is a single escrowed work agreement. The ledger is the only writer.
type Task struct {
	ID                int64      `json:"id"`
	Requester         string     `json:"requester"`
	Worker            string     `json:"worker,omitempty"`
	Evaluator         string     `json:"evaluator,omitempty"`
	Amount            int64      `json:"amount"`
	CreatedAt         time.Time  `json:"created_at"`
	Deadline          time.Time  `json:"deadline"`
	DescriptionHash   string     `json:"description_hash"`
	OutputHash        string     `json:"output_hash,omitempty"`
	OutputLength      int64      `json:"output_length,omitempty"`
	MinLength         int64      `json:"min_length,omitempty"`
	MaxLength         int64      `json:"max_length,omitempty"`
	RequiredApprovals int        `json:"required_approvals,omitempty"`
	CurrentApprovals  int        `json:"current_approvals,omitempty"`
	Status            TaskStatus `json:"status"`
}

// IsTerminal returns true once the task has settled (or frozen in dispute).
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskRefunded || t.Status == TaskDisputed
}

// Expired reports whether the deadline has passed at the given instant.
func (t *Task) Expired(now time.Time) bool {
	return !now.Before(t.Deadline)
}

// LengthInBounds checks an output length against the task's bounds.
// A zero bound means unbounded on that side.
func (t *Task) LengthInBounds(length int64) bool {
	if t.MinLength > 0 && length < t.MinLength {
		return false
	}
	if t.MaxLength > 0 && length > t.MaxLength {
		return false
	}
	return true
}

// CreateParams are the caller-supplied fields of CreateTask.
type CreateParams struct {
	DescriptionHash   string `json:"description_hash"`
	Amount            int64  `json:"amount"`
	DeadlineHours     int64  `json:"deadline_hours"`
	Evaluator         string `json:"evaluator,omitempty"`
	MinLength         int64  `json:"min_length,omitempty"`
	MaxLength         int64  `json:"max_length,omitempty"`
	RequiredApprovals int    `json:"required_approvals,omitempty"`
}

// Validate enforces the creation preconditions. Violations are rejected,
// never clamped.
func (p CreateParams) Validate() error {
	if p.DescriptionHash == "" {
		return ErrInvalidParameters
	}
	if p.Amount <= 0 {
		return ErrInvalidParameters
	}
	if p.DeadlineHours <= 0 {
		return ErrInvalidParameters
	}
	if p.MinLength < 0 || p.MaxLength < 0 {
		return ErrInvalidParameters
	}
	if p.MaxLength > 0 && p.MaxLength < p.MinLength {
		return ErrInvalidParameters
	}
	if p.RequiredApprovals < 0 {
		return ErrInvalidParameters
	}
	return nil
}
