// Package token implements the double-entry ledger for the stable-value
// asset backing escrow. Every movement creates matched DEBIT/CREDIT
// entries; SUM(debits) == SUM(credits) is an invariant.
//
// Transfers out of an account someone else initiates are gated by a prior
// Approve from the owner (two-phase allowance), mirroring the
// approve/transferFrom discipline of fungible-asset contracts.
package token

import (
	"fmt"
	"time"

	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

// MintAccount is the source of newly issued tokens.
const MintAccount = "mint"

// store is the storage surface a token movement needs. Both *sqlite.DB and
// *sqlite.Tx satisfy it, so a movement can run standalone or join the
// caller's transaction and roll back with it.
type store interface {
	InsertTokenEntry(domain.LedgerEntry) (int64, error)
	TokenBalance(account string) (int64, error)
	SetAllowance(owner, spender string, amount int64) error
	Allowance(owner, spender string) (int64, error)
}

// Service manages token balances and allowances.
type Service struct {
	db  *sqlite.DB
	now func() time.Time
}

// NewService creates a token service.
func NewService(db *sqlite.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// BalanceOf returns the current balance of an account.
func (s *Service) BalanceOf(account string) (int64, error) {
	return s.db.TokenBalance(account)
}

// Mint issues new tokens to an account (test/faucet path; the escrow core
// itself never mints).
func (s *Service) Mint(account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive, got %d", amount)
	}
	return s.move(s.db, MintAccount, account, amount, 0, "mint")
}

// Approve authorizes spender to pull up to amount from owner.
// Replaces any earlier authorization for the pair.
func (s *Service) Approve(owner, spender string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("allowance must be non-negative, got %d", amount)
	}
	return s.db.SetAllowance(owner, spender, amount)
}

// Allowance returns the remaining owner→spender authorization.
func (s *Service) Allowance(owner, spender string) (int64, error) {
	return s.db.Allowance(owner, spender)
}

// Transfer moves tokens between accounts with no allowance check.
func (s *Service) Transfer(from, to string, amount int64, taskID int64, memo string) error {
	return s.transfer(s.db, from, to, amount, taskID, memo)
}

// TransferTx is Transfer inside an open transaction. The escrow ledger uses
// it so a fund movement commits or rolls back with the status change it pays
// for.
func (s *Service) TransferTx(tx *sqlite.Tx, from, to string, amount int64, taskID int64, memo string) error {
	return s.transfer(tx, from, to, amount, taskID, memo)
}

// TransferFrom pulls tokens from owner into to, consuming allowance the
// spender was granted. Fails without moving anything if the allowance or
// the balance is too small.
func (s *Service) TransferFrom(spender, owner, to string, amount int64, taskID int64, memo string) error {
	return s.transferFrom(s.db, spender, owner, to, amount, taskID, memo)
}

// TransferFromTx is TransferFrom inside an open transaction; a rollback
// restores the consumed allowance along with the funds.
func (s *Service) TransferFromTx(tx *sqlite.Tx, spender, owner, to string, amount int64, taskID int64, memo string) error {
	return s.transferFrom(tx, spender, owner, to, amount, taskID, memo)
}

// History returns recent ledger entries for an account.
func (s *Service) History(account string, limit int) ([]domain.LedgerEntry, error) {
	return s.db.TokenEntries(account, limit)
}

func (s *Service) transfer(st store, from, to string, amount int64, taskID int64, memo string) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	bal, err := st.TokenBalance(from)
	if err != nil {
		return fmt.Errorf("get balance of %s: %w", from, err)
	}
	if bal < amount {
		return domain.ErrInsufficientFunds
	}

	return s.move(st, from, to, amount, taskID, memo)
}

func (s *Service) transferFrom(st store, spender, owner, to string, amount int64, taskID int64, memo string) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	allowed, err := st.Allowance(owner, spender)
	if err != nil {
		return fmt.Errorf("get allowance: %w", err)
	}
	if allowed < amount {
		return domain.ErrInsufficientAllowance
	}

	bal, err := st.TokenBalance(owner)
	if err != nil {
		return fmt.Errorf("get balance of %s: %w", owner, err)
	}
	if bal < amount {
		return domain.ErrInsufficientFunds
	}

	if err := s.move(st, owner, to, amount, taskID, memo); err != nil {
		return err
	}
	return st.SetAllowance(owner, spender, allowed-amount)
}

// move writes the matched DEBIT/CREDIT pair for a transfer.
func (s *Service) move(st store, from, to string, amount, taskID int64, memo string) error {
	now := s.now()

	fromBal, err := st.TokenBalance(from)
	if err != nil {
		return fmt.Errorf("get balance of %s: %w", from, err)
	}
	toBal, err := st.TokenBalance(to)
	if err != nil {
		return fmt.Errorf("get balance of %s: %w", to, err)
	}

	_, err = st.InsertTokenEntry(domain.LedgerEntry{
		Timestamp: now,
		EntryType: domain.EntryDebit,
		Account:   from,
		Amount:    amount,
		TaskID:    taskID,
		Memo:      memo,
		Balance:   fromBal - amount,
	})
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}

	_, err = st.InsertTokenEntry(domain.LedgerEntry{
		Timestamp: now,
		EntryType: domain.EntryCredit,
		Account:   to,
		Amount:    amount,
		TaskID:    taskID,
		Memo:      memo,
		Balance:   toBal + amount,
	})
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}
