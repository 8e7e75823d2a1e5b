// Package lifecycle drives a full escrow task through its network-visible
// steps: allowance authorization, creation, claim, submission, evaluation.
// It is a client of the ledger's state machine, not the state machine
// itself — every precondition is enforced server-side, and this package
// only decides what is safe to retry.
//
// Retry policy: transport failures (timeouts, transient connectivity) are
// retried; ledger logic errors are surfaced verbatim. CreateTask is the
// one non-idempotent step, so an ambiguous failure is resolved by looking
// for an existing task with the same description commitment and requester
// before trying again.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/judgepay-labs/judgepay/internal/commit"
	"github.com/judgepay-labs/judgepay/internal/domain"
)

// Client is the remote ledger surface the orchestrator drives. The HTTP
// API client implements it; tests drive the ledger engine directly.
type Client interface {
	Approve(ctx context.Context, owner string, amount int64) error
	Allowance(ctx context.Context, owner string) (int64, error)
	CreateTask(ctx context.Context, requester string, p domain.CreateParams) (int64, error)
	ClaimTask(ctx context.Context, id int64, caller string) (*domain.Task, error)
	SubmitWork(ctx context.Context, id int64, caller, outputHash string, outputLength int64) (*domain.Task, error)
	Evaluate(ctx context.Context, id int64, caller string, approve bool) (*domain.Task, error)
	RefundExpired(ctx context.Context, id int64, caller string) (*domain.Task, error)
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	FindTask(ctx context.Context, descriptionHash, requester string) (*domain.Task, error)
}

// TransportError marks a failure of the transport rather than the ledger.
// Only these are retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Orchestrator sequences ledger calls into logical workflows.
type Orchestrator struct {
	client  Client
	retries int
	backoff time.Duration
	logf    func(format string, args ...any)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetries sets how many times a transport failure is retried.
func WithRetries(n int) Option {
	return func(o *Orchestrator) { o.retries = n }
}

// WithBackoff sets the pause between retries.
func WithBackoff(d time.Duration) Option {
	return func(o *Orchestrator) { o.backoff = d }
}

// WithLogf sets a progress logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(o *Orchestrator) { o.logf = logf }
}

// New creates an orchestrator over a ledger client.
func New(client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		retries: 3,
		backoff: 500 * time.Millisecond,
		logf:    func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ─── Steps ──────────────────────────────────────────────────────────────────

// EnsureAllowance authorizes the escrow to pull amount from owner and
// waits until the authorization is observably final. CreateTask issued
// against an unconfirmed authorization fails transiently, so ordering
// matters: confirm first, create after.
func (o *Orchestrator) EnsureAllowance(ctx context.Context, owner string, amount int64) error {
	current, err := o.allowance(ctx, owner)
	if err != nil {
		return err
	}
	if current >= amount {
		return nil
	}

	if err := o.retry(ctx, func() error {
		return o.client.Approve(ctx, owner, amount)
	}); err != nil {
		return fmt.Errorf("approve allowance: %w", err)
	}

	// Confirm the authorization is visible before anything depends on it.
	for attempt := 0; ; attempt++ {
		current, err = o.allowance(ctx, owner)
		if err != nil {
			return err
		}
		if current >= amount {
			return nil
		}
		if attempt >= o.retries {
			return fmt.Errorf("allowance not confirmed: have %d, want %d", current, amount)
		}
		if err := o.pause(ctx); err != nil {
			return err
		}
	}
}

// Create creates a task, guarding against the one ambiguity a retry can
// introduce: a create that timed out may still have been delivered.
// Before each retry the ledger is queried for an existing task matching
// the same description commitment and requester.
func (o *Orchestrator) Create(ctx context.Context, requester string, p domain.CreateParams) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			// The prior attempt may have landed. Reuse it rather than
			// funding a duplicate escrow.
			if t, err := o.client.FindTask(ctx, p.DescriptionHash, requester); err == nil {
				o.logf("create: recovered existing task %d after ambiguous failure", t.ID)
				return t.ID, nil
			}
			if err := o.pause(ctx); err != nil {
				return 0, err
			}
		}

		id, err := o.client.CreateTask(ctx, requester, p)
		if err == nil {
			o.logf("create: task %d funded with %d units", id, p.Amount)
			return id, nil
		}
		if !IsTransport(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// Claim assigns caller as the worker. A retried claim that reports
// AlreadyClaimed is a success if the worker on record is the caller.
func (o *Orchestrator) Claim(ctx context.Context, id int64, caller string) error {
	err := o.retry(ctx, func() error {
		_, err := o.client.ClaimTask(ctx, id, caller)
		return err
	})
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		if t, gerr := o.client.GetTask(ctx, id); gerr == nil && t.Worker == caller {
			return nil
		}
	}
	return err
}

// Submit hashes the output locally and submits its commitment. A retried
// submission that reports InvalidState is a success if the commitment on
// record matches what was sent.
func (o *Orchestrator) Submit(ctx context.Context, id int64, caller, output string) error {
	digest, length := commit.Hash(output)

	err := o.retry(ctx, func() error {
		_, err := o.client.SubmitWork(ctx, id, caller, digest.String(), length)
		return err
	})
	if errors.Is(err, domain.ErrInvalidState) {
		if t, gerr := o.client.GetTask(ctx, id); gerr == nil &&
			t.Status == domain.TaskSubmitted && t.OutputHash == digest.String() {
			return nil
		}
	}
	return err
}

// Evaluate casts a vote. A retried vote whose first attempt landed shows
// up as DuplicateVote (quorum still pending) or InvalidState (the vote
// settled the task); both resolve by reading the task back.
func (o *Orchestrator) Evaluate(ctx context.Context, id int64, caller string, approve bool) (*domain.Task, error) {
	var task *domain.Task
	err := o.retry(ctx, func() error {
		t, err := o.client.Evaluate(ctx, id, caller, approve)
		task = t
		return err
	})
	if errors.Is(err, domain.ErrDuplicateVote) {
		return o.client.GetTask(ctx, id)
	}
	if errors.Is(err, domain.ErrInvalidState) {
		if t, gerr := o.client.GetTask(ctx, id); gerr == nil && t.IsTerminal() {
			return t, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Refund triggers the deadline-refund path for a stalled task.
func (o *Orchestrator) Refund(ctx context.Context, id int64, caller string) (*domain.Task, error) {
	var task *domain.Task
	err := o.retry(ctx, func() error {
		t, err := o.client.RefundExpired(ctx, id, caller)
		task = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ─── Full Loop ──────────────────────────────────────────────────────────────

// LoopSpec describes one complete task lifecycle to drive end to end.
type LoopSpec struct {
	Requester   string
	Worker      string
	Evaluator   string
	Description string
	Output      string
	Amount      int64
	DeadlineHrs int64
	MinLength   int64
	MaxLength   int64
	Approve     bool
}

// RunLoop drives allowance → create → claim → submit → evaluate and
// returns the settled task. Each step waits for its ledger write to be
// observable before the next is issued.
func (o *Orchestrator) RunLoop(ctx context.Context, spec LoopSpec) (*domain.Task, error) {
	run := uuid.NewString()
	o.logf("loop %s: starting for requester %s", run, spec.Requester)

	if err := o.EnsureAllowance(ctx, spec.Requester, spec.Amount); err != nil {
		return nil, fmt.Errorf("ensure allowance: %w", err)
	}

	digest, _ := commit.Hash(spec.Description)
	id, err := o.Create(ctx, spec.Requester, domain.CreateParams{
		DescriptionHash: digest.String(),
		Amount:          spec.Amount,
		DeadlineHours:   spec.DeadlineHrs,
		Evaluator:       spec.Evaluator,
		MinLength:       spec.MinLength,
		MaxLength:       spec.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := o.Claim(ctx, id, spec.Worker); err != nil {
		return nil, fmt.Errorf("claim task %d: %w", id, err)
	}
	o.logf("loop %s: task %d claimed by %s", run, id, spec.Worker)

	if err := o.Submit(ctx, id, spec.Worker, spec.Output); err != nil {
		return nil, fmt.Errorf("submit work for task %d: %w", id, err)
	}

	evaluator := spec.Evaluator
	if evaluator == "" {
		evaluator = spec.Requester
	}
	task, err := o.Evaluate(ctx, id, evaluator, spec.Approve)
	if err != nil {
		return nil, fmt.Errorf("evaluate task %d: %w", id, err)
	}

	o.logf("loop %s: task %d settled as %s", run, id, task.Status)
	return task, nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (o *Orchestrator) allowance(ctx context.Context, owner string) (int64, error) {
	var current int64
	err := o.retry(ctx, func() error {
		n, err := o.client.Allowance(ctx, owner)
		current = n
		return err
	})
	return current, err
}

// retry runs op, retrying transport failures only.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			if perr := o.pause(ctx); perr != nil {
				return perr
			}
		}
		err = op()
		if err == nil || !IsTransport(err) {
			return err
		}
	}
	return err
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.backoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.backoff):
		return nil
	}
}
