package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/judgepay-labs/judgepay/internal/app/token"
	"github.com/judgepay-labs/judgepay/internal/commit"
	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db     *sqlite.DB
	tokens *token.Service
	engine *Engine
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tokens := token.NewService(db)
	engine := NewEngine(db, tokens)
	engine.SetClock(clock.Now)

	return &fixture{db: db, tokens: tokens, engine: engine, clock: clock}
}

// fund mints tokens to an account and approves the escrow to pull them.
func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	if err := f.tokens.Mint(account, amount); err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if err := f.tokens.Approve(account, EscrowAccount, amount); err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
}

func defaultParams() domain.CreateParams {
	d, _ := commit.Hash("summarize the quarterly report")
	return domain.CreateParams{
		DescriptionHash: d.String(),
		Amount:          10,
		DeadlineHours:   24,
	}
}

// create funds the requester and creates a default task.
func (f *fixture) create(t *testing.T, requester string, mod func(*domain.CreateParams)) int64 {
	t.Helper()
	p := defaultParams()
	if mod != nil {
		mod(&p)
	}
	f.fund(t, requester, p.Amount)
	id, err := f.engine.CreateTask(requester, p)
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	return id
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	bal, err := f.tokens.BalanceOf(account)
	if err != nil {
		t.Fatalf("BalanceOf(%s) error: %v", account, err)
	}
	return bal
}

// ─── Create ─────────────────────────────────────────────────────────────────

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	if id != 0 {
		t.Errorf("first task id = %d, want 0", id)
	}

	task, err := f.engine.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if task.Status != domain.TaskOpen {
		t.Errorf("status = %s, want OPEN", task.Status)
	}
	if task.Worker != "" {
		t.Errorf("worker = %q, want unset", task.Worker)
	}
	if !task.Deadline.After(task.CreatedAt) {
		t.Error("deadline must be strictly after createdAt")
	}

	// Escrow pulled exactly once; allowance consumed.
	if bal := f.balance(t, EscrowAccount); bal != 10 {
		t.Errorf("escrow balance = %d, want 10", bal)
	}
	if bal := f.balance(t, "alice"); bal != 0 {
		t.Errorf("requester balance = %d, want 0", bal)
	}
	allowed, _ := f.tokens.Allowance("alice", EscrowAccount)
	if allowed != 0 {
		t.Errorf("remaining allowance = %d, want 0", allowed)
	}
}

func TestCreateTask_MonotonicIDs(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, "alice", nil)
	second := f.create(t, "alice", nil)

	if first != 0 || second != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", first, second)
	}
	count, _ := f.engine.TaskCount()
	if count != 2 {
		t.Errorf("TaskCount() = %d, want 2", count)
	}
}

func TestCreateTask_InvalidParameters(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 100)

	cases := map[string]domain.CreateParams{
		"zero amount":         {DescriptionHash: defaultParams().DescriptionHash, Amount: 0, DeadlineHours: 24},
		"negative amount":     {DescriptionHash: defaultParams().DescriptionHash, Amount: -1, DeadlineHours: 24},
		"zero deadline":       {DescriptionHash: defaultParams().DescriptionHash, Amount: 10, DeadlineHours: 0},
		"max below min":       {DescriptionHash: defaultParams().DescriptionHash, Amount: 10, DeadlineHours: 24, MinLength: 100, MaxLength: 50},
		"missing description": {Amount: 10, DeadlineHours: 24},
		"malformed digest":    {DescriptionHash: "not-a-digest", Amount: 10, DeadlineHours: 24},
	}

	for name, p := range cases {
		if _, err := f.engine.CreateTask("alice", p); !errors.Is(err, domain.ErrInvalidParameters) {
			t.Errorf("%s: error = %v, want ErrInvalidParameters", name, err)
		}
	}

	// No task created, no funds moved.
	count, _ := f.engine.TaskCount()
	if count != 0 {
		t.Errorf("TaskCount() = %d, want 0", count)
	}
	if bal := f.balance(t, "alice"); bal != 100 {
		t.Errorf("alice balance = %d, want 100", bal)
	}
}

func TestCreateTask_NoAllowance(t *testing.T) {
	f := newFixture(t)
	f.tokens.Mint("alice", 100)

	_, err := f.engine.CreateTask("alice", defaultParams())
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Errorf("error = %v, want ErrInsufficientAllowance", err)
	}

	count, _ := f.engine.TaskCount()
	if count != 0 {
		t.Errorf("failed create left TaskCount() = %d, want 0", count)
	}
}

// ─── Claim ──────────────────────────────────────────────────────────────────

func TestClaimTask(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	task, err := f.engine.ClaimTask(id, "bob")
	if err != nil {
		t.Fatalf("ClaimTask() error: %v", err)
	}
	if task.Worker != "bob" {
		t.Errorf("worker = %q, want bob", task.Worker)
	}
	if task.Status != domain.TaskOpen {
		t.Errorf("status = %s, want OPEN (claim does not change status)", task.Status)
	}
}

func TestClaimTask_AlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	_, err := f.engine.ClaimTask(id, "carol")
	if !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("error = %v, want ErrAlreadyClaimed", err)
	}

	task, _ := f.engine.GetTask(id)
	if task.Worker != "bob" {
		t.Errorf("worker = %q, want bob (never reassigned)", task.Worker)
	}
}

func TestClaimTask_SelfDealing(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	if _, err := f.engine.ClaimTask(id, "alice"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestClaimTask_NotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.ClaimTask(42, "bob"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
}

func TestClaimTask_AfterSubmission(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")
	d, n := commit.Hash("output")
	f.engine.SubmitWork(id, "bob", d.String(), n)

	if _, err := f.engine.ClaimTask(id, "carol"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

// ─── Submit ─────────────────────────────────────────────────────────────────

func TestSubmitWork(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	d, n := commit.Hash("hello")
	task, err := f.engine.SubmitWork(id, "bob", d.String(), n)
	if err != nil {
		t.Fatalf("SubmitWork() error: %v", err)
	}
	if task.Status != domain.TaskSubmitted {
		t.Errorf("status = %s, want SUBMITTED", task.Status)
	}
	if task.OutputHash != d.String() || task.OutputLength != 5 {
		t.Errorf("output commitment = %s/%d, want %s/5", task.OutputHash, task.OutputLength, d)
	}
}

func TestSubmitWork_Expired(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.MinLength = 1; p.MaxLength = 3 })
	f.engine.ClaimTask(id, "bob")

	f.clock.Advance(25 * time.Hour)

	// Expired wins regardless of length validity — this output is also
	// out of bounds and must still fail with Expired.
	d, n := commit.Hash("way too long output")
	_, err := f.engine.SubmitWork(id, "bob", d.String(), n)
	if !errors.Is(err, domain.ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}

	task, _ := f.engine.GetTask(id)
	if task.Status != domain.TaskOpen || task.OutputHash != "" {
		t.Error("failed submission must not mutate the task")
	}
}

func TestSubmitWork_LengthOutOfRange(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.MinLength = 10; p.MaxLength = 20 })
	f.engine.ClaimTask(id, "bob")

	d, n := commit.Hash("short")
	if _, err := f.engine.SubmitWork(id, "bob", d.String(), n); !errors.Is(err, domain.ErrLengthOutOfRange) {
		t.Errorf("below min: error = %v, want ErrLengthOutOfRange", err)
	}

	d, n = commit.Hash("an output that is clearly longer than twenty characters")
	if _, err := f.engine.SubmitWork(id, "bob", d.String(), n); !errors.Is(err, domain.ErrLengthOutOfRange) {
		t.Errorf("above max: error = %v, want ErrLengthOutOfRange", err)
	}

	task, _ := f.engine.GetTask(id)
	if task.Status != domain.TaskOpen {
		t.Errorf("status = %s, want OPEN (rejected, not clamped)", task.Status)
	}
}

func TestSubmitWork_ZeroBoundsUnbounded(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	d, n := commit.Hash("")
	if _, err := f.engine.SubmitWork(id, "bob", d.String(), n); err != nil {
		t.Errorf("zero-length output with zero bounds should be accepted, got %v", err)
	}
}

func TestSubmitWork_NotWorker(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	d, n := commit.Hash("hello")
	if _, err := f.engine.SubmitWork(id, "mallory", d.String(), n); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitWork_Unclaimed(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	d, n := commit.Hash("hello")
	if _, err := f.engine.SubmitWork(id, "bob", d.String(), n); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

// ─── Evaluate: Single Mode ──────────────────────────────────────────────────

func submitDefault(t *testing.T, f *fixture, id int64, worker string) {
	t.Helper()
	if _, err := f.engine.ClaimTask(id, worker); err != nil {
		t.Fatalf("ClaimTask() error: %v", err)
	}
	d, n := commit.Hash("hello")
	if _, err := f.engine.SubmitWork(id, worker, d.String(), n); err != nil {
		t.Fatalf("SubmitWork() error: %v", err)
	}
}

func TestEvaluate_SingleApprove(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")

	task, err := f.engine.Evaluate(id, "alice", true)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Errorf("status = %s, want COMPLETED", task.Status)
	}

	// Worker paid exactly once; escrow fully drained.
	if bal := f.balance(t, "bob"); bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}
	if bal := f.balance(t, EscrowAccount); bal != 0 {
		t.Errorf("escrow balance = %d, want 0", bal)
	}
}

func TestEvaluate_SingleReject(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")

	task, err := f.engine.Evaluate(id, "alice", false)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if task.Status != domain.TaskRefunded {
		t.Errorf("status = %s, want REFUNDED", task.Status)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10 (refunded)", bal)
	}
	if bal := f.balance(t, "bob"); bal != 0 {
		t.Errorf("worker balance = %d, want 0", bal)
	}
}

func TestEvaluate_SecondCallInvalidState(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")
	f.engine.Evaluate(id, "alice", true)

	if _, err := f.engine.Evaluate(id, "alice", true); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}

	// Funds moved exactly once.
	if bal := f.balance(t, "bob"); bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}
}

func TestEvaluate_DesignatedEvaluator(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.Evaluator = "judge" })
	submitDefault(t, f, id, "bob")

	// Requester may not judge once an evaluator is designated.
	if _, err := f.engine.Evaluate(id, "alice", true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("requester vote: error = %v, want ErrUnauthorized", err)
	}

	task, err := f.engine.Evaluate(id, "judge", true)
	if err != nil {
		t.Fatalf("Evaluate() by designated evaluator error: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Errorf("status = %s, want COMPLETED", task.Status)
	}
}

func TestEvaluate_BeforeSubmission(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	if _, err := f.engine.Evaluate(id, "alice", true); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

// ─── Evaluate: Quorum Mode ──────────────────────────────────────────────────

func TestEvaluate_QuorumAccumulates(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.RequiredApprovals = 3 })
	submitDefault(t, f, id, "bob")

	f.engine.Evaluate(id, "v1", true)
	task, err := f.engine.Evaluate(id, "v2", true)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if task.Status != domain.TaskSubmitted {
		t.Errorf("status after 2/3 approvals = %s, want SUBMITTED", task.Status)
	}
	if task.CurrentApprovals != 2 {
		t.Errorf("currentApprovals = %d, want 2", task.CurrentApprovals)
	}

	task, err = f.engine.Evaluate(id, "v3", true)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Errorf("status after 3/3 approvals = %s, want COMPLETED", task.Status)
	}
	if bal := f.balance(t, "bob"); bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}
}

func TestEvaluate_QuorumDuplicateVote(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.RequiredApprovals = 3 })
	submitDefault(t, f, id, "bob")

	f.engine.Evaluate(id, "v1", true)

	if _, err := f.engine.Evaluate(id, "v1", true); !errors.Is(err, domain.ErrDuplicateVote) {
		t.Errorf("error = %v, want ErrDuplicateVote", err)
	}

	task, _ := f.engine.GetTask(id)
	if task.CurrentApprovals != 1 {
		t.Errorf("currentApprovals = %d, want 1 (duplicate not counted)", task.CurrentApprovals)
	}
}

func TestEvaluate_QuorumWorkerCannotVote(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.RequiredApprovals = 2 })
	submitDefault(t, f, id, "bob")

	if _, err := f.engine.Evaluate(id, "bob", true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestEvaluate_QuorumRejectDisputes(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", func(p *domain.CreateParams) { p.RequiredApprovals = 3 })
	submitDefault(t, f, id, "bob")

	f.engine.Evaluate(id, "v1", true)
	task, err := f.engine.Evaluate(id, "v2", false)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if task.Status != domain.TaskDisputed {
		t.Errorf("status = %s, want DISPUTED", task.Status)
	}
	// Funds frozen in custody.
	if bal := f.balance(t, EscrowAccount); bal != 10 {
		t.Errorf("escrow balance = %d, want 10 (frozen)", bal)
	}
	if bal := f.balance(t, "bob"); bal != 0 {
		t.Errorf("worker balance = %d, want 0", bal)
	}

	// Disputed is terminal.
	if _, err := f.engine.Evaluate(id, "v3", true); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("vote on disputed task: error = %v, want ErrInvalidState", err)
	}
}

// ─── Deadline Refund ────────────────────────────────────────────────────────

func TestRefundExpired_Open(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.engine.ClaimTask(id, "bob")

	f.clock.Advance(25 * time.Hour)

	task, err := f.engine.RefundExpired(id, "alice")
	if err != nil {
		t.Fatalf("RefundExpired() error: %v", err)
	}
	if task.Status != domain.TaskRefunded {
		t.Errorf("status = %s, want REFUNDED", task.Status)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10", bal)
	}
}

func TestRefundExpired_Submitted(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")

	f.clock.Advance(25 * time.Hour)

	// Any party may trigger the refund; no evaluator consent needed.
	if _, err := f.engine.RefundExpired(id, "bob"); err != nil {
		t.Fatalf("RefundExpired() error: %v", err)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10", bal)
	}
}

func TestRefundExpired_Twice(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	f.clock.Advance(25 * time.Hour)
	f.engine.RefundExpired(id, "alice")

	if _, err := f.engine.RefundExpired(id, "alice"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10 (refunded once)", bal)
	}
}

func TestRefundExpired_BeforeDeadline(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	if _, err := f.engine.RefundExpired(id, "alice"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

// ─── Partial-Failure Recovery ───────────────────────────────────────────────

// flakyTokens wraps the real token service with injectable one-shot
// failures, standing in for a storage hiccup mid-operation.
type flakyTokens struct {
	inner         *token.Service
	failTransfers int
	failPulls     int
}

func (f *flakyTokens) TransferTx(tx *sqlite.Tx, from, to string, amount int64, taskID int64, memo string) error {
	if f.failTransfers > 0 {
		f.failTransfers--
		return errors.New("token service unavailable")
	}
	return f.inner.TransferTx(tx, from, to, amount, taskID, memo)
}

// TransferFromTx applies the real pull first, then fails: the rollback
// must undo the already-written movement and allowance consumption.
func (f *flakyTokens) TransferFromTx(tx *sqlite.Tx, spender, owner, to string, amount int64, taskID int64, memo string) error {
	if err := f.inner.TransferFromTx(tx, spender, owner, to, amount, taskID, memo); err != nil {
		return err
	}
	if f.failPulls > 0 {
		f.failPulls--
		return errors.New("token service unavailable")
	}
	return nil
}

func newFlakyFixture(t *testing.T) (*fixture, *flakyTokens) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tokens := token.NewService(db)
	flaky := &flakyTokens{inner: tokens}
	engine := NewEngine(db, flaky)
	engine.SetClock(clock.Now)

	return &fixture{db: db, tokens: tokens, engine: engine, clock: clock}, flaky
}

func TestEvaluate_FailedSettlementLeavesNoVote(t *testing.T) {
	f, flaky := newFlakyFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")

	flaky.failTransfers = 1
	if _, err := f.engine.Evaluate(id, "alice", true); err == nil {
		t.Fatal("Evaluate() with failing settlement transfer should error")
	}

	// The whole evaluate rolled back: no vote row, no approval, no payout.
	task, _ := f.engine.GetTask(id)
	if task.Status != domain.TaskSubmitted || task.CurrentApprovals != 0 {
		t.Errorf("task after failed evaluate = %s/%d approvals, want SUBMITTED/0",
			task.Status, task.CurrentApprovals)
	}
	if voted, _ := f.db.HasVoted(id, "alice"); voted {
		t.Error("failed evaluate must not leave a vote behind")
	}
	if bal := f.balance(t, EscrowAccount); bal != 10 {
		t.Errorf("escrow balance = %d, want 10 (untouched)", bal)
	}

	// The retry is a fresh vote, not a duplicate, and pays exactly once.
	task, err := f.engine.Evaluate(id, "alice", true)
	if err != nil {
		t.Fatalf("retry Evaluate() error: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Errorf("retry status = %s, want COMPLETED", task.Status)
	}
	if bal := f.balance(t, "bob"); bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}
}

func TestRefundExpired_FailedTransferRetries(t *testing.T) {
	f, flaky := newFlakyFixture(t)
	id := f.create(t, "alice", nil)
	f.clock.Advance(25 * time.Hour)

	flaky.failTransfers = 1
	if _, err := f.engine.RefundExpired(id, "alice"); err == nil {
		t.Fatal("RefundExpired() with failing transfer should error")
	}

	// Nothing moved and nothing settled, so the refund is still owed.
	task, _ := f.engine.GetTask(id)
	if task.Status != domain.TaskOpen {
		t.Errorf("status after failed refund = %s, want OPEN", task.Status)
	}
	if bal := f.balance(t, EscrowAccount); bal != 10 {
		t.Errorf("escrow balance = %d, want 10 (untouched)", bal)
	}

	// Retry pays the requester exactly once.
	if _, err := f.engine.RefundExpired(id, "alice"); err != nil {
		t.Fatalf("retry RefundExpired() error: %v", err)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10", bal)
	}
	if _, err := f.engine.RefundExpired(id, "alice"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("third call error = %v, want ErrInvalidState", err)
	}
}

func TestCreateTask_FailedCreateRestoresAllowance(t *testing.T) {
	f, flaky := newFlakyFixture(t)
	f.fund(t, "alice", 10)

	flaky.failPulls = 1
	if _, err := f.engine.CreateTask("alice", defaultParams()); err == nil {
		t.Fatal("CreateTask() with failing deposit pull should error")
	}

	// Rollback restores funds and authorization alike.
	count, _ := f.engine.TaskCount()
	if count != 0 {
		t.Errorf("TaskCount() = %d, want 0", count)
	}
	if bal := f.balance(t, "alice"); bal != 10 {
		t.Errorf("requester balance = %d, want 10", bal)
	}
	if allowed, _ := f.tokens.Allowance("alice", EscrowAccount); allowed != 10 {
		t.Errorf("remaining allowance = %d, want 10 (not consumed)", allowed)
	}

	// The untouched allowance carries the retry with no fresh approve.
	id, err := f.engine.CreateTask("alice", defaultParams())
	if err != nil {
		t.Fatalf("retry CreateTask() error: %v", err)
	}
	if id != 0 {
		t.Errorf("retry id = %d, want 0", id)
	}
	if bal := f.balance(t, EscrowAccount); bal != 10 {
		t.Errorf("escrow balance = %d, want 10", bal)
	}
}

// ─── Events & Queries ───────────────────────────────────────────────────────

func TestEvents_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")
	f.engine.Evaluate(id, "alice", true)

	events, err := f.engine.Events(id)
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Events() = %d events, want 3", len(events))
	}

	want := []domain.EventType{domain.EventTaskCreated, domain.EventWorkSubmitted, domain.EventTaskSettled}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, ev.Type, want[i])
		}
		if ev.ID == "" {
			t.Errorf("event[%d] has no id", i)
		}
	}

	settled := events[2]
	if settled.Recipient != "bob" || settled.Amount != 10 {
		t.Errorf("settled event = %s/%d, want bob/10", settled.Recipient, settled.Amount)
	}
}

func TestFindTask(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "alice", nil)

	p := defaultParams()
	found, err := f.engine.FindTask(p.DescriptionHash, "alice")
	if err != nil {
		t.Fatalf("FindTask() error: %v", err)
	}
	if found.ID != id {
		t.Errorf("FindTask() id = %d, want %d", found.ID, id)
	}

	if _, err := f.engine.FindTask(p.DescriptionHash, "nobody"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
}

func TestListTasks(t *testing.T) {
	f := newFixture(t)
	f.create(t, "alice", nil)
	id := f.create(t, "alice", nil)
	submitDefault(t, f, id, "bob")

	all, err := f.engine.ListTasks("", 10)
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListTasks() = %d tasks, want 2", len(all))
	}

	submitted, _ := f.engine.ListTasks(domain.TaskSubmitted, 10)
	if len(submitted) != 1 || submitted[0].ID != id {
		t.Errorf("ListTasks(SUBMITTED) = %v, want just task %d", submitted, id)
	}
}

// ─── End-to-End Scenario ────────────────────────────────────────────────────

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)

	// create(amount=10, deadlineHours=24, unbounded, single evaluator)
	id := f.create(t, "alice", nil)

	// claim by worker W
	if _, err := f.engine.ClaimTask(id, "wanda"); err != nil {
		t.Fatalf("ClaimTask() error: %v", err)
	}

	// submit(output="hello", length=5) before deadline
	d, n := commit.Hash("hello")
	if n != 5 {
		t.Fatalf("length of %q = %d, want 5", "hello", n)
	}
	if _, err := f.engine.SubmitWork(id, "wanda", d.String(), n); err != nil {
		t.Fatalf("SubmitWork() error: %v", err)
	}

	// evaluate(approve=true) by requester
	task, err := f.engine.Evaluate(id, "alice", true)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if task.Status != domain.TaskCompleted {
		t.Errorf("final status = %s, want COMPLETED", task.Status)
	}
	if bal := f.balance(t, "wanda"); bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}
	if bal := f.balance(t, EscrowAccount); bal != 0 {
		t.Errorf("escrow balance = %d, want 0 (fully consumed)", bal)
	}

	// The stored commitment verifies the deliverable by round-trip.
	if !commit.Verify("hello", task.OutputHash, task.OutputLength) {
		t.Error("stored commitment should verify the submitted content")
	}
}
