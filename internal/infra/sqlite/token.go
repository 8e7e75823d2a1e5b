package sqlite

import (
	"database/sql"
	"time"

	"github.com/judgepay-labs/judgepay/internal/domain"
)

// ─── Token Ledger ───────────────────────────────────────────────────────────

// InsertTokenEntry adds one side of a double-entry token movement.
func (d *DB) InsertTokenEntry(entry domain.LedgerEntry) (int64, error) {
	return insertTokenEntry(d.db, entry)
}

// InsertTokenEntry adds a ledger entry within the transaction.
func (t *Tx) InsertTokenEntry(entry domain.LedgerEntry) (int64, error) {
	return insertTokenEntry(t.tx, entry)
}

func insertTokenEntry(e executor, entry domain.LedgerEntry) (int64, error) {
	result, err := e.Exec(
		`INSERT INTO token_ledger (timestamp, entry_type, account, amount, task_id, memo, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.Unix(), string(entry.EntryType), entry.Account,
		entry.Amount, nullInt(entry.TaskID), nullStr(entry.Memo), entry.Balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// TokenBalance returns the current balance for an account.
func (d *DB) TokenBalance(account string) (int64, error) { return tokenBalance(d.db, account) }

// TokenBalance returns the current balance within the transaction.
func (t *Tx) TokenBalance(account string) (int64, error) { return tokenBalance(t.tx, account) }

func tokenBalance(e executor, account string) (int64, error) {
	var balance sql.NullInt64
	err := e.QueryRow(
		`SELECT balance FROM token_ledger WHERE account = ? ORDER BY id DESC LIMIT 1`,
		account,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Int64, nil
}

// TokenEntries returns recent ledger entries for an account.
func (d *DB) TokenEntries(account string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, entry_type, account, amount, task_id, memo, balance
		 FROM token_ledger WHERE account = ? ORDER BY id DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var taskID sql.NullInt64
		var memo sql.NullString
		err := rows.Scan(&e.ID, &ts, &e.EntryType, &e.Account,
			&e.Amount, &taskID, &memo, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		if taskID.Valid {
			e.TaskID = taskID.Int64
		}
		if memo.Valid {
			e.Memo = memo.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EntryTotals returns the grand totals of debit and credit amounts across
// the whole ledger. Equal totals mean no movement was half-recorded.
func (d *DB) EntryTotals() (debits, credits int64, err error) {
	err = d.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE 0 END), 0)
		 FROM token_ledger`,
		string(domain.EntryDebit), string(domain.EntryCredit),
	).Scan(&debits, &credits)
	return debits, credits, err
}

// ─── Allowances ─────────────────────────────────────────────────────────────

// SetAllowance stores an owner→spender authorization, replacing any prior one.
func (d *DB) SetAllowance(owner, spender string, amount int64) error {
	return setAllowance(d.db, owner, spender, amount)
}

// SetAllowance stores an authorization within the transaction.
func (t *Tx) SetAllowance(owner, spender string, amount int64) error {
	return setAllowance(t.tx, owner, spender, amount)
}

func setAllowance(e executor, owner, spender string, amount int64) error {
	_, err := e.Exec(
		`INSERT INTO allowances (owner, spender, amount) VALUES (?, ?, ?)
		 ON CONFLICT(owner, spender) DO UPDATE SET amount=excluded.amount`,
		owner, spender, amount,
	)
	return err
}

// Allowance returns the remaining owner→spender authorization.
func (d *DB) Allowance(owner, spender string) (int64, error) {
	return allowance(d.db, owner, spender)
}

// Allowance returns the remaining authorization within the transaction.
func (t *Tx) Allowance(owner, spender string) (int64, error) {
	return allowance(t.tx, owner, spender)
}

func allowance(e executor, owner, spender string) (int64, error) {
	var amount int64
	err := e.QueryRow(
		`SELECT amount FROM allowances WHERE owner = ? AND spender = ?`, owner, spender,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amount, err
}
