package domain

import "time"

// EventType names the observable ledger events. Each fires exactly once,
// in the same step as its state transition.
type EventType string

const (
	EventTaskCreated   EventType = "TASK_CREATED"
	EventWorkSubmitted EventType = "WORK_SUBMITTED"
	EventTaskSettled   EventType = "TASK_SETTLED"
)

// Event is an audit record consumers use to discover assigned task IDs and
// confirm outcomes without polling raw state.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    int64     `json:"task_id"`
	Actor     string    `json:"actor,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one side of a double-entry token movement.
// SUM(debits) == SUM(credits) is an invariant of the token ledger.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EntryType EntryType `json:"entry_type"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	TaskID    int64     `json:"task_id,omitempty"`
	Memo      string    `json:"memo,omitempty"`
	Balance   int64     `json:"balance"`
}

// EntryType marks which side of the double entry a row records.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)
