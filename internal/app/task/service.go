// Package task implements the task lifecycle: creation, the forward-only
// status state machine, and assignment.
package task

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// Service drives task mutations against the store.
type Service struct {
	db *sqlite.DB
}

// NewService creates a task service.
func NewService(db *sqlite.DB) *Service {
	return &Service{db: db}
}

// NewAttachment describes a blob submitted alongside a new task.
type NewAttachment struct {
	ContentType string
	Content     []byte
}

// Create persists a new task in WAITING_FOR_APPROVE, stores its
// attachments, and opens the approval phase. Returns the task id.
func (s *Service) Create(t domain.Task, attachments []NewAttachment) (int64, error) {
	if t.CreatedBy == "" {
		t.CreatedBy = domain.DefaultIdentity
	}
	t.Status = domain.StatusWaitingForApprove

	id, err := s.db.InsertTask(t)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	for _, a := range attachments {
		att := domain.Attachment{
			ID:          uuid.NewString(),
			TaskID:      id,
			ContentType: a.ContentType,
			Length:      int64(len(a.Content)),
			Content:     a.Content,
		}
		if err := s.db.InsertAttachment(att); err != nil {
			return 0, fmt.Errorf("attach to task %d: %w", id, err)
		}
	}

	if err := s.db.OpenPhase(id, domain.StatusWaitingForApprove); err != nil {
		return 0, fmt.Errorf("open approval phase for task %d: %w", id, err)
	}

	log.Printf("[task] created task=%d by=%s attachments=%d", id, t.CreatedBy, len(attachments))
	return id, nil
}

// Transition moves a task to requested. The APPROVED alias is resolved to
// TO_DO before the ordinal check; a backward move fails with
// domain.ErrInvalidTransition. Entering RESOLVED reopens an approval phase
// for the task — the sole coupling between the state machine and the
// approval tracker.
func (s *Service) Transition(taskID int64, requested domain.TaskStatus) error {
	current, err := s.db.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("transition task %d: %w", taskID, err)
	}

	next := requested.Normalize()
	if !current.Status.CanTransitionTo(next) {
		return fmt.Errorf("task %d: %s -> %s: %w", taskID, current.Status, next, domain.ErrInvalidTransition)
	}

	if err := s.db.UpdateTaskStatus(taskID, next); err != nil {
		return fmt.Errorf("transition task %d: %w", taskID, err)
	}

	if next == domain.StatusResolved {
		if err := s.db.OpenPhase(taskID, domain.StatusResolved); err != nil {
			return fmt.Errorf("open resolved phase for task %d: %w", taskID, err)
		}
	}

	log.Printf("[task] transitioned task=%d %s -> %s", taskID, current.Status, next)
	return nil
}

// Assign sets the task's assignee.
func (s *Service) Assign(taskID int64, assignee string) error {
	if err := s.db.UpdateAssignee(taskID, assignee); err != nil {
		return fmt.Errorf("assign task %d: %w", taskID, err)
	}
	return nil
}

// Get returns a task by id.
func (s *Service) Get(taskID int64) (domain.Task, error) {
	return s.db.GetTask(taskID)
}

// List returns tasks, newest first, optionally filtered by status.
func (s *Service) List(status *domain.TaskStatus, limit int) ([]domain.Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.db.ListTasks(status, limit)
}

// Attachment fetches one attachment blob by id.
func (s *Service) Attachment(id string) (domain.Attachment, error) {
	return s.db.GetAttachment(id)
}

// AttachmentIDs returns the ids of a task's attachments.
func (s *Service) AttachmentIDs(taskID int64) ([]string, error) {
	return s.db.ListAttachmentIDs(taskID)
}
