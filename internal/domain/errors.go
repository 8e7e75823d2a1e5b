package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Every ledger
// operation fails with exactly one of these, and a failed operation
// mutates nothing.

var (
	// Task lookup
	ErrTaskNotFound = errors.New("task not found")

	// Lifecycle
	ErrInvalidState   = errors.New("operation not valid for current task status")
	ErrAlreadyClaimed = errors.New("task already claimed by a worker")
	ErrExpired        = errors.New("task deadline has passed")

	// Authorization (signature verification happens outside the ledger;
	// these cover role checks on an already-authenticated caller)
	ErrUnauthorized  = errors.New("caller lacks the required role for this task")
	ErrDuplicateVote = errors.New("caller already voted on this task")

	// Submission
	ErrLengthOutOfRange = errors.New("output length outside the task bounds")

	// Funding
	ErrInsufficientAllowance = errors.New("allowance too small to fund escrow")
	ErrInsufficientFunds     = errors.New("account balance too small")

	// Input validation
	ErrInvalidParameters = errors.New("invalid task parameters")
)
