// Package reward implements the reward ledger: per-user balances guarded by
// account status, with an append-only audit trail.
package reward

import (
	"fmt"
	"log"

	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// Ledger mutates account balances. Every successful mutation appends exactly
// one audit event in the same transaction as the balance change.
type Ledger struct {
	db *sqlite.DB
}

// NewLedger creates a reward ledger over the store.
func NewLedger(db *sqlite.DB) *Ledger {
	return &Ledger{db: db}
}

// Accrue credits amount to userID. The account is created on first accrual;
// an existing non-ACTIVE account refuses the credit with
// domain.ErrAccountNotActive. initiator is "system" for sweep-driven
// credits and the caller's identity otherwise.
func (l *Ledger) Accrue(userID string, amount int64, initiator string) error {
	if err := l.db.Accrue(userID, amount, initiator); err != nil {
		return fmt.Errorf("accrue %d to %s: %w", amount, userID, err)
	}
	log.Printf("[reward] accrued user=%s amount=%d initiator=%s", userID, amount, initiator)
	return nil
}

// WriteOff debits amount from userID. Fails with domain.ErrAccountNotFound,
// domain.ErrInsufficientFunds, or domain.ErrAccountNotActive; the balance is
// unchanged on every failure.
func (l *Ledger) WriteOff(userID string, amount int64, initiator string) error {
	if err := l.db.WriteOff(userID, amount, initiator); err != nil {
		return fmt.Errorf("write off %d from %s: %w", amount, userID, err)
	}
	log.Printf("[reward] wrote off user=%s amount=%d initiator=%s", userID, amount, initiator)
	return nil
}

// SetStatus updates the account's status unconditionally. Administrative
// freeze/unfreeze; writes no audit event.
func (l *Ledger) SetStatus(userID string, status domain.AccountStatus) error {
	if err := l.db.SetAccountStatus(userID, status); err != nil {
		return fmt.Errorf("set status %s on %s: %w", status, userID, err)
	}
	log.Printf("[reward] account status user=%s status=%s", userID, status)
	return nil
}

// AccountFor returns the account for an identity, creating a zero-balance
// ACTIVE account on first access.
func (l *Ledger) AccountFor(userID string) (domain.Account, error) {
	return l.db.EnsureAccount(userID)
}

// Events returns the audit trail for an identity, oldest first.
func (l *Ledger) Events(userID string) ([]domain.Event, error) {
	return l.db.EventsForUser(userID)
}
