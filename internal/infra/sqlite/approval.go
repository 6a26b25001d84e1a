// Approval tracker and vote ledger operations.
//
// The load-bearing primitive here is claim-by-delete-and-return:
// `DELETE ... RETURNING` is a single atomic statement, so a row can be
// returned to at most one caller. The settlement sweep relies on this for
// at-most-once settlement per task and at-most-once crediting per voter.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoboard/ecoboard/internal/domain"
)

// OpenPhase starts (or restarts) a voting phase for a task. The counter is
// reset to zero and created_at is stamped fresh, also when a record for the
// task already exists.
func (db *DB) OpenPhase(taskID int64, phase domain.TaskStatus) error {
	_, err := db.db.Exec(`
		INSERT INTO approval (task_id, phase, counter, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			phase      = excluded.phase,
			counter    = 0,
			created_at = excluded.created_at
	`, taskID, phase.String(), encodeTime(time.Now()))
	return err
}

// GetApproval returns the open approval record for a task, or
// domain.ErrApprovalNotFound if the task has no open phase.
func (db *DB) GetApproval(taskID int64) (domain.Approval, error) {
	var a domain.Approval
	var phase, created string
	err := db.db.QueryRow(`
		SELECT task_id, phase, counter, created_at FROM approval WHERE task_id = ?
	`, taskID).Scan(&a.TaskID, &phase, &a.Counter, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Approval{}, domain.ErrApprovalNotFound
	}
	if err != nil {
		return domain.Approval{}, err
	}
	a.Phase, _ = domain.ParseTaskStatus(phase)
	a.CreatedAt = decodeTime(created)
	return a, nil
}

// RecordVote inserts a voter row and moves the approval counter in the same
// transaction, so the counter and the vote rows never diverge.
// Fails with domain.ErrApprovalNotFound if the task has no open phase and
// with domain.ErrAlreadyVoted if the voter already voted in this phase.
func (db *DB) RecordVote(v domain.Vote) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM approval WHERE task_id = ?`, v.TaskID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrApprovalNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO vote (voter_id, task_id, type) VALUES (?, ?, ?)
	`, v.VoterID, v.TaskID, string(v.Type)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyVoted
		}
		return err
	}

	if _, err := tx.Exec(`
		UPDATE approval SET counter = counter + ? WHERE task_id = ?
	`, v.Type.Delta(), v.TaskID); err != nil {
		return err
	}

	return tx.Commit()
}

// ClaimSettleable atomically removes and returns every approval record in
// the given phase whose counter reached minCounter and whose phase opened at
// or before cutoff. A record is returned to at most one caller, ever.
func (db *DB) ClaimSettleable(phase domain.TaskStatus, cutoff time.Time, minCounter int64) ([]domain.Approval, error) {
	rows, err := db.db.Query(`
		DELETE FROM approval
		WHERE phase = ? AND created_at <= ? AND counter >= ?
		RETURNING task_id, phase, counter, created_at
	`, phase.String(), encodeTime(cutoff), minCounter)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", phase, err)
	}
	return scanApprovals(rows)
}

// ClaimStale atomically removes and returns approval records of either phase
// that aged past their threshold without reaching their vote count. These
// are the tasks headed for TRASHED.
func (db *DB) ClaimStale(waitingCutoff, resolvedCutoff time.Time, waitingCount, resolvedCount int64) ([]domain.Approval, error) {
	rows, err := db.db.Query(`
		DELETE FROM approval
		WHERE (phase = ? AND created_at <= ? AND counter < ?)
		   OR (phase = ? AND created_at <= ? AND counter < ?)
		RETURNING task_id, phase, counter, created_at
	`,
		domain.StatusWaitingForApprove.String(), encodeTime(waitingCutoff), waitingCount,
		domain.StatusResolved.String(), encodeTime(resolvedCutoff), resolvedCount)
	if err != nil {
		return nil, fmt.Errorf("claim stale: %w", err)
	}
	return scanApprovals(rows)
}

// TakeVoters atomically removes and returns the voter ids of the given type
// for a task. Each voter id is returned exactly once across all calls, which
// is what makes per-voter crediting at-most-once.
func (db *DB) TakeVoters(taskID int64, t domain.VoteType) ([]string, error) {
	rows, err := db.db.Query(`
		DELETE FROM vote WHERE task_id = ? AND type = ? RETURNING voter_id
	`, taskID, string(t))
	if err != nil {
		return nil, fmt.Errorf("take voters: %w", err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		voters = append(voters, id)
	}
	return voters, rows.Err()
}

// ClearVotes deletes all remaining votes for a task.
func (db *DB) ClearVotes(taskID int64) error {
	_, err := db.db.Exec(`DELETE FROM vote WHERE task_id = ?`, taskID)
	return err
}

// CountVotes returns the number of vote rows for a task, by type.
func (db *DB) CountVotes(taskID int64, t domain.VoteType) (int64, error) {
	var n int64
	err := db.db.QueryRow(`
		SELECT COUNT(*) FROM vote WHERE task_id = ? AND type = ?
	`, taskID, string(t)).Scan(&n)
	return n, err
}

func scanApprovals(rows *sql.Rows) ([]domain.Approval, error) {
	defer rows.Close()

	var claimed []domain.Approval
	for rows.Next() {
		var a domain.Approval
		var phase, created string
		if err := rows.Scan(&a.TaskID, &phase, &a.Counter, &created); err != nil {
			return nil, err
		}
		a.Phase, _ = domain.ParseTaskStatus(phase)
		a.CreatedAt = decodeTime(created)
		claimed = append(claimed, a)
	}
	return claimed, rows.Err()
}
