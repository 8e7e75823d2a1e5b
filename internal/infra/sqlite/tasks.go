package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/judgepay-labs/judgepay/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

// InsertTask creates a new task record with an explicit id.
func (d *DB) InsertTask(task domain.Task) error { return insertTask(d.db, task) }

// InsertTask creates a new task record within the transaction.
func (t *Tx) InsertTask(task domain.Task) error { return insertTask(t.tx, task) }

func insertTask(e executor, task domain.Task) error {
	_, err := e.Exec(
		`INSERT INTO tasks (id, requester, worker, evaluator, amount, created_at, deadline,
		                    description_hash, output_hash, output_length,
		                    min_length, max_length, required_approvals, current_approvals, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Requester, nullStr(task.Worker), nullStr(task.Evaluator),
		task.Amount, task.CreatedAt.Unix(), task.Deadline.Unix(),
		task.DescriptionHash, nullStr(task.OutputHash), nullInt(task.OutputLength),
		task.MinLength, task.MaxLength, task.RequiredApprovals, task.CurrentApprovals,
		string(task.Status),
	)
	return err
}

// GetTask retrieves a task by id. Returns (nil, nil) when absent.
func (d *DB) GetTask(id int64) (*domain.Task, error) {
	row := d.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	return scanTask(row)
}

// TaskCount returns the number of tasks ever created.
func (d *DB) TaskCount() (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// ListTasks returns tasks newest-first, optionally filtered by status.
func (d *DB) ListTasks(status domain.TaskStatus, limit int) ([]domain.Task, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = d.db.Query(taskSelect+` ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = d.db.Query(taskSelect+` WHERE status = ? ORDER BY id DESC LIMIT ?`,
			string(status), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// FindTask locates the newest task a requester created for a given
// description commitment. Used to detect an ambiguous duplicate create.
func (d *DB) FindTask(descriptionHash, requester string) (*domain.Task, error) {
	row := d.db.QueryRow(
		taskSelect+` WHERE description_hash = ? AND requester = ? ORDER BY id DESC LIMIT 1`,
		descriptionHash, requester,
	)
	return scanTask(row)
}

// SetTaskWorker assigns a worker to an open task.
func (d *DB) SetTaskWorker(id int64, worker string) error {
	_, err := d.db.Exec(`UPDATE tasks SET worker = ? WHERE id = ?`, worker, id)
	return err
}

// SetTaskSubmission records the output commitment and moves to Submitted.
func (d *DB) SetTaskSubmission(id int64, outputHash string, outputLength int64) error {
	_, err := d.db.Exec(
		`UPDATE tasks SET output_hash = ?, output_length = ?, status = ? WHERE id = ?`,
		outputHash, outputLength, string(domain.TaskSubmitted), id,
	)
	return err
}

// SetTaskApprovals updates the running approval count.
func (d *DB) SetTaskApprovals(id int64, approvals int) error {
	return setTaskApprovals(d.db, id, approvals)
}

// SetTaskApprovals updates the approval count within the transaction.
func (t *Tx) SetTaskApprovals(id int64, approvals int) error {
	return setTaskApprovals(t.tx, id, approvals)
}

func setTaskApprovals(e executor, id int64, approvals int) error {
	_, err := e.Exec(`UPDATE tasks SET current_approvals = ? WHERE id = ?`, approvals, id)
	return err
}

// SettleTask moves a task to a terminal status with its final approval count.
func (d *DB) SettleTask(id int64, status domain.TaskStatus, approvals int) error {
	return settleTask(d.db, id, status, approvals)
}

// SettleTask moves a task to a terminal status within the transaction.
func (t *Tx) SettleTask(id int64, status domain.TaskStatus, approvals int) error {
	return settleTask(t.tx, id, status, approvals)
}

func settleTask(e executor, id int64, status domain.TaskStatus, approvals int) error {
	_, err := e.Exec(
		`UPDATE tasks SET status = ?, current_approvals = ? WHERE id = ?`,
		string(status), approvals, id,
	)
	return err
}

// EscrowCommitted returns the total amount custody still owes: every task
// whose funds have not yet left the escrow account.
func (d *DB) EscrowCommitted() (int64, error) {
	var total int64
	err := d.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM tasks WHERE status IN (?, ?, ?)`,
		string(domain.TaskOpen), string(domain.TaskSubmitted), string(domain.TaskDisputed),
	).Scan(&total)
	return total, err
}

const taskSelect = `SELECT id, requester, worker, evaluator, amount, created_at, deadline,
	description_hash, output_hash, output_length,
	min_length, max_length, required_approvals, current_approvals, status FROM tasks`

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var createdAt, deadline int64
	var worker, evaluator, outputHash sql.NullString
	var outputLength sql.NullInt64

	err := s.Scan(&t.ID, &t.Requester, &worker, &evaluator, &t.Amount,
		&createdAt, &deadline, &t.DescriptionHash, &outputHash, &outputLength,
		&t.MinLength, &t.MaxLength, &t.RequiredApprovals, &t.CurrentApprovals, &t.Status)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.CreatedAt = time.Unix(createdAt, 0)
	t.Deadline = time.Unix(deadline, 0)
	if worker.Valid {
		t.Worker = worker.String
	}
	if evaluator.Valid {
		t.Evaluator = evaluator.String
	}
	if outputHash.Valid {
		t.OutputHash = outputHash.String
	}
	if outputLength.Valid {
		t.OutputLength = outputLength.Int64
	}
	return &t, nil
}

// ─── Votes ──────────────────────────────────────────────────────────────────

// HasVoted reports whether a voter already voted on a task.
func (d *DB) HasVoted(taskID int64, voter string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM votes WHERE task_id = ? AND voter = ?`, taskID, voter,
	).Scan(&n)
	return n > 0, err
}

// InsertVote records a vote.
func (d *DB) InsertVote(taskID int64, voter string, approve bool, at time.Time) error {
	return insertVote(d.db, taskID, voter, approve, at)
}

// InsertVote records a vote within the transaction.
func (t *Tx) InsertVote(taskID int64, voter string, approve bool, at time.Time) error {
	return insertVote(t.tx, taskID, voter, approve, at)
}

func insertVote(e executor, taskID int64, voter string, approve bool, at time.Time) error {
	_, err := e.Exec(
		`INSERT INTO votes (task_id, voter, approve, created_at) VALUES (?, ?, ?, ?)`,
		taskID, voter, approve, at.Unix(),
	)
	return err
}

// ─── Events ─────────────────────────────────────────────────────────────────

// InsertEvent appends an observable event.
func (d *DB) InsertEvent(e domain.Event) error {
	_, err := d.db.Exec(
		`INSERT INTO events (id, type, task_id, actor, amount, recipient, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.TaskID, nullStr(e.Actor), nullInt(e.Amount),
		nullStr(e.Recipient), e.CreatedAt.Unix(),
	)
	return err
}

// ListEvents returns a task's events oldest-first.
func (d *DB) ListEvents(taskID int64) ([]domain.Event, error) {
	rows, err := d.db.Query(
		`SELECT id, type, task_id, actor, amount, recipient, created_at
		 FROM events WHERE task_id = ? ORDER BY created_at, id`, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var createdAt int64
		var actor, recipient sql.NullString
		var amount sql.NullInt64

		err := rows.Scan(&e.ID, &e.Type, &e.TaskID, &actor, &amount, &recipient, &createdAt)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		if actor.Valid {
			e.Actor = actor.String
		}
		if amount.Valid {
			e.Amount = amount.Int64
		}
		if recipient.Valid {
			e.Recipient = recipient.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
