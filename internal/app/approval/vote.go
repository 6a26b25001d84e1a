// Package approval implements peer voting on open task phases.
package approval

import (
	"fmt"
	"log"

	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// Service records votes against open approval phases.
type Service struct {
	db *sqlite.DB
}

// NewService creates a vote service.
func NewService(db *sqlite.DB) *Service {
	return &Service{db: db}
}

// Cast records one vote by voterID on taskID's open phase. The voter row
// and the counter move in the same transaction.
//
// Fails with domain.ErrApprovalNotFound when the task has no open phase
// (including the window where a sweep has claimed the task but not yet
// reopened a phase — a task is either open for voting or being settled,
// never both) and with domain.ErrAlreadyVoted on a duplicate vote within
// one phase.
func (s *Service) Cast(taskID int64, voterID string, t domain.VoteType) error {
	if err := s.db.RecordVote(domain.Vote{VoterID: voterID, TaskID: taskID, Type: t}); err != nil {
		return fmt.Errorf("vote %s on task %d: %w", t, taskID, err)
	}
	log.Printf("[approval] vote recorded task=%d voter=%s type=%s", taskID, voterID, t)
	return nil
}

// Status returns the open approval record for a task.
func (s *Service) Status(taskID int64) (domain.Approval, error) {
	return s.db.GetApproval(taskID)
}
