// Reward ledger operations: accounts and their append-only audit events.
//
// Accrue and WriteOff are single transactions covering the status guard,
// the balance mutation, and the event append, so the balance and the audit
// trail cannot diverge and concurrent credits to one account cannot lose
// updates.
package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ecoboard/ecoboard/internal/domain"
)

// EnsureAccount returns the account for a user, creating a zero-balance
// ACTIVE account if none exists yet.
func (db *DB) EnsureAccount(userID string) (domain.Account, error) {
	now := encodeTime(time.Now())
	if _, err := db.db.Exec(`
		INSERT INTO account (user_id, amount, status, updated_at, created_at)
		VALUES (?, 0, 'ACTIVE', ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, now, now); err != nil {
		return domain.Account{}, err
	}
	return db.GetAccount(userID)
}

// GetAccount retrieves an account by user id, or domain.ErrAccountNotFound.
func (db *DB) GetAccount(userID string) (domain.Account, error) {
	var a domain.Account
	var status, updated, created string
	err := db.db.QueryRow(`
		SELECT user_id, amount, status, updated_at, created_at FROM account WHERE user_id = ?
	`, userID).Scan(&a.UserID, &a.Amount, &status, &updated, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	a.Status = domain.AccountStatus(status)
	a.UpdatedAt = decodeTime(updated)
	a.CreatedAt = decodeTime(created)
	return a, nil
}

// Accrue adds amount to a user's balance, creating the account on first
// accrual, and appends an "accrual" event. Fails with
// domain.ErrAccountNotActive if the account exists but is not ACTIVE; in
// that case no event is written.
func (db *DB) Accrue(userID string, amount int64, initiator string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM account WHERE user_id = ?`, userID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First accrual creates the account.
	case err != nil:
		return err
	case domain.AccountStatus(status) != domain.AccountActive:
		return domain.ErrAccountNotActive
	}

	now := encodeTime(time.Now())
	if _, err := tx.Exec(`
		INSERT INTO account (user_id, amount, status, updated_at, created_at)
		VALUES (?, ?, 'ACTIVE', ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			amount     = amount + excluded.amount,
			updated_at = excluded.updated_at
	`, userID, amount, now, now); err != nil {
		return err
	}

	if err := insertEvent(tx, userID, amount, domain.EventAccrual, initiator); err != nil {
		return err
	}
	return tx.Commit()
}

// WriteOff subtracts amount from a user's balance and appends a "write-off"
// event. Fails with domain.ErrAccountNotFound if no account exists,
// domain.ErrInsufficientFunds if the balance is below amount, and
// domain.ErrAccountNotActive if the account is not ACTIVE. The balance is
// untouched on every failure path.
func (db *DB) WriteOff(userID string, amount int64, initiator string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance int64
	var status string
	err = tx.QueryRow(`SELECT amount, status FROM account WHERE user_id = ?`, userID).Scan(&balance, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return domain.ErrInsufficientFunds
	}
	if domain.AccountStatus(status) != domain.AccountActive {
		return domain.ErrAccountNotActive
	}

	if _, err := tx.Exec(`
		UPDATE account SET amount = amount - ?, updated_at = ? WHERE user_id = ?
	`, amount, encodeTime(time.Now()), userID); err != nil {
		return err
	}

	if err := insertEvent(tx, userID, -amount, domain.EventWriteOff, initiator); err != nil {
		return err
	}
	return tx.Commit()
}

// SetAccountStatus updates an account's status. This is the administrative
// freeze/unfreeze path; it writes no event.
func (db *DB) SetAccountStatus(userID string, status domain.AccountStatus) error {
	res, err := db.db.Exec(`
		UPDATE account SET status = ?, updated_at = ? WHERE user_id = ?
	`, string(status), encodeTime(time.Now()), userID)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrAccountNotFound)
}

// EventsForUser returns a user's audit trail, oldest first.
func (db *DB) EventsForUser(userID string) ([]domain.Event, error) {
	rows, err := db.db.Query(`
		SELECT id, user_id, value, kind, initiator, created_at
		FROM event WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var kind, created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Value, &kind, &e.Initiator, &created); err != nil {
			return nil, err
		}
		e.Kind = domain.EventKind(kind)
		e.CreatedAt = decodeTime(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func insertEvent(tx *sql.Tx, userID string, value int64, kind domain.EventKind, initiator string) error {
	_, err := tx.Exec(`
		INSERT INTO event (user_id, value, kind, initiator, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, value, string(kind), initiator, encodeTime(time.Now()))
	return err
}
