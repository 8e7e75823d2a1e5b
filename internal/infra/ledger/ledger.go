// Package ledger implements the authoritative escrow task ledger.
//
// The Engine owns all task records and every state transition:
// create (escrow funded) → claim → submit → evaluate → settle, plus the
// deadline-refund exit for stalled tasks. All writes are serialized by a
// single mutex so two concurrent claims of the same task resolve to
// exactly one winner. Failed operations mutate nothing.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/judgepay-labs/judgepay/internal/commit"
	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/infra/metrics"
	"github.com/judgepay-labs/judgepay/internal/infra/settlement"
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

// EscrowAccount is the custody account holding deposited funds until
// settlement.
const EscrowAccount = "escrow"

// TokenService is the value-asset collaborator: approve/transferFrom-style
// semantics, consumed at funding time and settlement time. The ledger never
// mints and never moves more than a task's amount. Movements run inside the
// engine's transaction so funds and task status commit or roll back as one.
type TokenService interface {
	TransferFromTx(tx *sqlite.Tx, spender, owner, to string, amount int64, taskID int64, memo string) error
	TransferTx(tx *sqlite.Tx, from, to string, amount int64, taskID int64, memo string) error
}

// Engine is the escrow task ledger.
type Engine struct {
	mu     sync.Mutex
	db     *sqlite.DB
	tokens TokenService

	// Injectable clock; the ledger only needs it to be non-decreasing.
	now func() time.Time
}

// NewEngine creates a ledger engine over the given storage and token service.
func NewEngine(db *sqlite.DB, tokens TokenService) *Engine {
	return &Engine{db: db, tokens: tokens, now: time.Now}
}

// SetClock overrides the time source (tests).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ─── Create ─────────────────────────────────────────────────────────────────

// CreateTask validates parameters, pulls the escrow deposit from the
// requester, and records a new Open task. IDs are monotonic in creation
// order, starting at 0. The deposit pull and the task insert share one
// transaction: a failed create consumes neither funds nor allowance.
func (e *Engine) CreateTask(requester string, p domain.CreateParams) (int64, error) {
	if requester == "" {
		return 0, domain.ErrInvalidParameters
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if _, err := commit.ParseDigest(p.DescriptionHash); err != nil {
		return 0, domain.ErrInvalidParameters
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.db.TaskCount()
	if err != nil {
		return 0, fmt.Errorf("task count: %w", err)
	}

	now := e.now()
	task := domain.Task{
		ID:                id,
		Requester:         requester,
		Evaluator:         p.Evaluator,
		Amount:            p.Amount,
		CreatedAt:         now,
		Deadline:          now.Add(time.Duration(p.DeadlineHours) * time.Hour),
		DescriptionHash:   p.DescriptionHash,
		MinLength:         p.MinLength,
		MaxLength:         p.MaxLength,
		RequiredApprovals: p.RequiredApprovals,
		Status:            domain.TaskOpen,
	}

	err = e.db.Transact(func(tx *sqlite.Tx) error {
		if err := e.tokens.TransferFromTx(tx, EscrowAccount, requester, EscrowAccount, p.Amount, id, "escrow deposit"); err != nil {
			return err
		}
		if err := tx.InsertTask(task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.emit(domain.Event{
		Type:   domain.EventTaskCreated,
		TaskID: id,
		Actor:  requester,
		Amount: p.Amount,
	})

	metrics.TasksCreated.Inc()
	metrics.TasksOpen.Inc()
	metrics.EscrowHeld.Add(float64(p.Amount))
	return id, nil
}

// ─── Claim ──────────────────────────────────────────────────────────────────

// ClaimTask assigns the caller as the task's worker. The status stays Open
// until work is actually submitted; an abandoned claim is not reclaimable
// before the deadline — the sole exit from a stalled task is RefundExpired.
func (e *Engine) ClaimTask(id int64, caller string) (*domain.Task, error) {
	if caller == "" {
		return nil, domain.ErrInvalidParameters
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.getTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrInvalidState
	}
	if t.Worker != "" {
		return nil, domain.ErrAlreadyClaimed
	}
	if caller == t.Requester {
		// Self-dealing forbidden.
		return nil, domain.ErrUnauthorized
	}

	if err := e.db.SetTaskWorker(id, caller); err != nil {
		return nil, fmt.Errorf("set worker: %w", err)
	}
	t.Worker = caller
	return t, nil
}

// ─── Submit ─────────────────────────────────────────────────────────────────

// SubmitWork records the output commitment and moves the task to Submitted.
// Past the deadline no submission is accepted regardless of length
// validity; out-of-bounds lengths are rejected, never clamped.
func (e *Engine) SubmitWork(id int64, caller, outputHash string, outputLength int64) (*domain.Task, error) {
	if outputLength < 0 {
		return nil, domain.ErrInvalidParameters
	}
	if _, err := commit.ParseDigest(outputHash); err != nil {
		return nil, domain.ErrInvalidParameters
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.getTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrInvalidState
	}
	if t.Worker == "" || caller != t.Worker {
		return nil, domain.ErrUnauthorized
	}
	if t.Expired(e.now()) {
		return nil, domain.ErrExpired
	}
	if !t.LengthInBounds(outputLength) {
		return nil, domain.ErrLengthOutOfRange
	}

	if err := e.db.SetTaskSubmission(id, outputHash, outputLength); err != nil {
		return nil, fmt.Errorf("set submission: %w", err)
	}

	e.emit(domain.Event{
		Type:   domain.EventWorkSubmitted,
		TaskID: id,
		Actor:  caller,
	})

	t.OutputHash = outputHash
	t.OutputLength = outputLength
	t.Status = domain.TaskSubmitted
	return t, nil
}

// ─── Evaluate ───────────────────────────────────────────────────────────────

// Evaluate applies one vote from an authorized evaluator. The settlement
// policy decides whether the vote settles the task and in which direction;
// funds move and the status changes in the same step.
func (e *Engine) Evaluate(id int64, caller string, approve bool) (*domain.Task, error) {
	if caller == "" {
		return nil, domain.ErrInvalidParameters
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.getTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskSubmitted {
		return nil, domain.ErrInvalidState
	}
	if !canEvaluate(t, caller) {
		return nil, domain.ErrUnauthorized
	}

	voted, err := e.db.HasVoted(id, caller)
	if err != nil {
		return nil, fmt.Errorf("check vote: %w", err)
	}
	if voted {
		return nil, domain.ErrDuplicateVote
	}

	decision := settlement.Decide(settlement.ModeFor(t.RequiredApprovals), t.CurrentApprovals, approve)

	// Vote, approval count, settlement transfer, and status change share
	// one transaction: a failed evaluate leaves no vote behind to turn the
	// retry into a spurious DuplicateVote.
	err = e.db.Transact(func(tx *sqlite.Tx) error {
		if err := tx.InsertVote(id, caller, approve, e.now()); err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		if !decision.Settled {
			if err := tx.SetTaskApprovals(id, decision.Approvals); err != nil {
				return fmt.Errorf("set approvals: %w", err)
			}
			return nil
		}
		return e.settle(tx, t, decision)
	})
	if err != nil {
		return nil, err
	}

	if decision.Settled {
		e.settled(t, decision)
	}

	if approve {
		metrics.VotesCast.WithLabelValues("approve").Inc()
	} else {
		metrics.VotesCast.WithLabelValues("reject").Inc()
	}

	t.CurrentApprovals = decision.Approvals
	t.Status = decision.NewStatus
	return t, nil
}

// canEvaluate decides whether caller may vote on the task.
// Single mode: the designated evaluator, or the requester when none was
// set. Quorum mode: any party except the worker, each at most once.
func canEvaluate(t *domain.Task, caller string) bool {
	if settlement.ModeFor(t.RequiredApprovals).Quorum {
		return caller != t.Worker
	}
	if t.Evaluator != "" {
		return caller == t.Evaluator
	}
	return caller == t.Requester
}

// settle moves escrowed funds (if any recipient) and marks the task
// terminal, inside the caller's transaction. Disputed tasks keep funds
// frozen in custody.
func (e *Engine) settle(tx *sqlite.Tx, t *domain.Task, d settlement.Decision) error {
	if account := recipientAccount(t, d.Recipient); account != "" {
		if err := e.tokens.TransferTx(tx, EscrowAccount, account, t.Amount, t.ID, "settlement"); err != nil {
			return fmt.Errorf("settlement transfer: %w", err)
		}
	}

	if err := tx.SettleTask(t.ID, d.NewStatus, d.Approvals); err != nil {
		return fmt.Errorf("settle task: %w", err)
	}
	return nil
}

// settled emits the event and metrics for a committed settlement.
func (e *Engine) settled(t *domain.Task, d settlement.Decision) {
	account := recipientAccount(t, d.Recipient)

	ev := domain.Event{
		Type:      domain.EventTaskSettled,
		TaskID:    t.ID,
		Recipient: account,
	}
	if account != "" {
		ev.Amount = t.Amount
	}
	e.emit(ev)

	metrics.TasksOpen.Dec()
	metrics.TasksSettled.WithLabelValues(outcomeLabel(d.NewStatus)).Inc()
	if account != "" {
		metrics.EscrowHeld.Sub(float64(t.Amount))
	}
}

// recipientAccount resolves a settlement recipient to a concrete account.
func recipientAccount(t *domain.Task, r settlement.Recipient) string {
	switch r {
	case settlement.RecipientWorker:
		return t.Worker
	case settlement.RecipientRequester:
		return t.Requester
	}
	return ""
}

// ─── Deadline Refund ────────────────────────────────────────────────────────

// RefundExpired returns the escrowed amount to the requester once the
// deadline has passed with the task still Open or Submitted. Any party may
// call it; it needs no evaluator consent and succeeds exactly once.
func (e *Engine) RefundExpired(id int64, caller string) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.getTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskOpen && t.Status != domain.TaskSubmitted {
		return nil, domain.ErrInvalidState
	}
	if !t.Expired(e.now()) {
		return nil, domain.ErrInvalidState
	}

	// Refund transfer and status change commit or roll back together, so
	// a half-applied refund can never be paid out twice.
	err = e.db.Transact(func(tx *sqlite.Tx) error {
		if err := e.tokens.TransferTx(tx, EscrowAccount, t.Requester, t.Amount, id, "deadline refund"); err != nil {
			return fmt.Errorf("refund transfer: %w", err)
		}
		if err := tx.SettleTask(id, domain.TaskRefunded, t.CurrentApprovals); err != nil {
			return fmt.Errorf("settle task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(domain.Event{
		Type:      domain.EventTaskSettled,
		TaskID:    id,
		Actor:     caller,
		Amount:    t.Amount,
		Recipient: t.Requester,
	})

	metrics.TasksOpen.Dec()
	metrics.TasksSettled.WithLabelValues("refunded").Inc()
	metrics.EscrowHeld.Sub(float64(t.Amount))

	t.Status = domain.TaskRefunded
	return t, nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// GetTask returns a task by id.
func (e *Engine) GetTask(id int64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getTask(id)
}

// TaskCount returns the number of createTask calls ever made.
func (e *Engine) TaskCount() (int64, error) {
	return e.db.TaskCount()
}

// ListTasks returns tasks newest-first, optionally filtered by status.
func (e *Engine) ListTasks(status domain.TaskStatus, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.db.ListTasks(status, limit)
}

// FindTask locates the newest task matching a description commitment and
// requester. Orchestrators use it before retrying an ambiguous create.
func (e *Engine) FindTask(descriptionHash, requester string) (*domain.Task, error) {
	t, err := e.db.FindTask(descriptionHash, requester)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

// Events returns a task's observable events oldest-first.
func (e *Engine) Events(taskID int64) ([]domain.Event, error) {
	return e.db.ListEvents(taskID)
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (e *Engine) getTask(id int64) (*domain.Task, error) {
	t, err := e.db.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

func (e *Engine) emit(ev domain.Event) {
	ev.ID = uuid.NewString()
	ev.CreatedAt = e.now()
	// An event write failure must not fail the committed transition; the
	// row is an audit convenience, the task record is the source of truth.
	_ = e.db.InsertEvent(ev)
}

func outcomeLabel(s domain.TaskStatus) string {
	switch s {
	case domain.TaskCompleted:
		return "completed"
	case domain.TaskRefunded:
		return "refunded"
	case domain.TaskDisputed:
		return "disputed"
	}
	return "unknown"
}
