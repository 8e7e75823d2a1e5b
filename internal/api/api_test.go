package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/judgepay-labs/judgepay/internal/app/token"
	"github.com/judgepay-labs/judgepay/internal/commit"
	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/infra/ledger"
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens := token.NewService(db)
	srv := httptest.NewServer(NewServer(ledger.NewEngine(db, tokens), tokens).Handler())
	t.Cleanup(srv.Close)

	return NewClient(srv.URL)
}

// ─── Full Lifecycle ─────────────────────────────────────────────────────────

func TestLifecycleOverHTTP(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Mint(ctx, "alice", 50); err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if err := c.Approve(ctx, "alice", 10); err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	allowed, err := c.Allowance(ctx, "alice")
	if err != nil {
		t.Fatalf("Allowance() error: %v", err)
	}
	if allowed != 10 {
		t.Errorf("allowance = %d, want 10", allowed)
	}

	descDigest, _ := commit.Hash("summarize the design doc")
	id, err := c.CreateTask(ctx, "alice", domain.CreateParams{
		DescriptionHash: descDigest.String(),
		Amount:          10,
		DeadlineHours:   24,
	})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if id != 0 {
		t.Errorf("first task id = %d, want 0", id)
	}

	task, err := c.ClaimTask(ctx, id, "bob")
	if err != nil {
		t.Fatalf("ClaimTask() error: %v", err)
	}
	if task.Worker != "bob" {
		t.Errorf("worker = %q, want bob", task.Worker)
	}

	outDigest, outLen := commit.Hash("a three paragraph summary")
	task, err = c.SubmitWork(ctx, id, "bob", outDigest.String(), outLen)
	if err != nil {
		t.Fatalf("SubmitWork() error: %v", err)
	}
	if task.Status != domain.TaskSubmitted {
		t.Errorf("status = %s, want SUBMITTED", task.Status)
	}

	task, err = c.Evaluate(ctx, id, "alice", true)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Errorf("status = %s, want COMPLETED", task.Status)
	}

	bal, err := c.BalanceOf(ctx, "bob")
	if err != nil {
		t.Fatalf("BalanceOf() error: %v", err)
	}
	if bal != 10 {
		t.Errorf("worker balance = %d, want 10", bal)
	}

	events, err := c.Events(ctx, id)
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[2].Type != domain.EventTaskSettled || events[2].Recipient != "bob" {
		t.Errorf("settled event = %+v, want TASK_SETTLED to bob", events[2])
	}
}

// ─── Error Reconstruction ───────────────────────────────────────────────────

func TestDomainErrorsSurviveTheWire(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.GetTask(ctx, 42); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("GetTask(42) error = %v, want ErrTaskNotFound", err)
	}

	digest, _ := commit.Hash("unfunded task")
	_, err := c.CreateTask(ctx, "alice", domain.CreateParams{
		DescriptionHash: digest.String(),
		Amount:          10,
		DeadlineHours:   24,
	})
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Errorf("unfunded create error = %v, want ErrInsufficientAllowance", err)
	}

	_, err = c.CreateTask(ctx, "alice", domain.CreateParams{
		DescriptionHash: digest.String(),
		Amount:          -1,
		DeadlineHours:   24,
	})
	if !errors.Is(err, domain.ErrInvalidParameters) {
		t.Errorf("negative amount error = %v, want ErrInvalidParameters", err)
	}
}

func TestClaimConflictsOverHTTP(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	c.Mint(ctx, "alice", 10)
	c.Approve(ctx, "alice", 10)

	digest, _ := commit.Hash("contested task")
	id, err := c.CreateTask(ctx, "alice", domain.CreateParams{
		DescriptionHash: digest.String(),
		Amount:          10,
		DeadlineHours:   24,
	})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}

	if _, err := c.ClaimTask(ctx, id, "alice"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("self-claim error = %v, want ErrUnauthorized", err)
	}
	if _, err := c.ClaimTask(ctx, id, "bob"); err != nil {
		t.Fatalf("ClaimTask(bob) error: %v", err)
	}
	if _, err := c.ClaimTask(ctx, id, "carol"); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("second claim error = %v, want ErrAlreadyClaimed", err)
	}
}

// ─── Listing and Lookup ─────────────────────────────────────────────────────

func TestListAndFindOverHTTP(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	c.Mint(ctx, "alice", 100)
	c.Approve(ctx, "alice", 100)

	var digests []string
	for i := 0; i < 3; i++ {
		d, _ := commit.Hash(string(rune('a' + i)))
		digests = append(digests, d.String())
		if _, err := c.CreateTask(ctx, "alice", domain.CreateParams{
			DescriptionHash: d.String(),
			Amount:          10,
			DeadlineHours:   24,
		}); err != nil {
			t.Fatalf("CreateTask(%d) error: %v", i, err)
		}
	}

	count, err := c.TaskCount(ctx)
	if err != nil {
		t.Fatalf("TaskCount() error: %v", err)
	}
	if count != 3 {
		t.Errorf("TaskCount() = %d, want 3", count)
	}

	tasks, err := c.ListTasks(ctx, domain.TaskOpen, 10)
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("ListTasks() = %d tasks, want 3", len(tasks))
	}
	if tasks[0].ID != 2 {
		t.Errorf("newest task id = %d, want 2", tasks[0].ID)
	}

	found, err := c.FindTask(ctx, digests[1], "alice")
	if err != nil {
		t.Fatalf("FindTask() error: %v", err)
	}
	if found.ID != 1 {
		t.Errorf("FindTask() id = %d, want 1", found.ID)
	}
	if _, err := c.FindTask(ctx, digests[1], "mallory"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("FindTask(wrong requester) error = %v, want ErrTaskNotFound", err)
	}
}
