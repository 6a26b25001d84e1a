// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Task Status ────────────────────────────────────────────────────────────

// TaskStatus is the position of a task in its lifecycle. The integer value
// is the ordinal: a task may only move to a status with an equal or greater
// ordinal (forward-only).
type TaskStatus int

const (
	StatusCreated TaskStatus = iota
	StatusWaitingForApprove
	StatusToDo
	StatusInProgress
	StatusResolved
	StatusCompleted
	StatusTrashed
)

// StatusApproved is a request-only pseudo-status. Callers may ask for it,
// but it is remapped to StatusToDo before any ordinal comparison and is
// never stored.
const StatusApproved TaskStatus = 100

var statusNames = map[TaskStatus]string{
	StatusCreated:           "CREATED",
	StatusWaitingForApprove: "WAITING_FOR_APPROVE",
	StatusToDo:              "TO_DO",
	StatusInProgress:        "IN_PROGRESS",
	StatusResolved:          "RESOLVED",
	StatusCompleted:         "COMPLETED",
	StatusTrashed:           "TRASHED",
	StatusApproved:          "APPROVED",
}

// String returns the wire/storage name of the status.
func (s TaskStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

// MarshalJSON encodes the status by name.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *TaskStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := ParseTaskStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseTaskStatus parses a wire/storage name into a TaskStatus.
func ParseTaskStatus(name string) (TaskStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown task status %q", name)
}

// Normalize resolves request-only aliases to their stored status.
// APPROVED means "the community approved this task": the stored result
// is TO_DO.
func (s TaskStatus) Normalize() TaskStatus {
	if s == StatusApproved {
		return StatusToDo
	}
	return s
}

// CanTransitionTo reports whether a task currently at s may move to next.
// Both statuses must already be normalized. Equal ordinals are allowed
// (idempotent re-apply); only backward moves are refused.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return s <= next
}

// Task is a community-submitted unit of work.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Reward      int64      `json:"reward"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedBy   string     `json:"created_by"`
	DueDate     time.Time  `json:"due_date,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ─── Voting ─────────────────────────────────────────────────────────────────

// VoteType is the direction of a vote.
type VoteType string

const (
	VoteApprove VoteType = "APPROVE"
	VoteReject  VoteType = "REJECT"
)

// ParseVoteType parses a wire name into a VoteType.
func ParseVoteType(name string) (VoteType, error) {
	switch VoteType(name) {
	case VoteApprove, VoteReject:
		return VoteType(name), nil
	}
	return "", fmt.Errorf("unknown vote type %q", name)
}

// Delta is the contribution of this vote to the approval counter.
func (v VoteType) Delta() int64 {
	if v == VoteApprove {
		return 1
	}
	return -1
}

// Vote records one voter's position on one task's open phase.
type Vote struct {
	VoterID string   `json:"voter_id"`
	TaskID  int64    `json:"task_id"`
	Type    VoteType `json:"type"`
}

// Approval is the per-task record of an open voting phase. It exists iff
// the task currently accepts votes: it is upserted when a phase opens and
// deleted exactly once when the settlement sweep claims it.
type Approval struct {
	TaskID    int64      `json:"task_id"`
	Phase     TaskStatus `json:"phase"` // WAITING_FOR_APPROVE or RESOLVED
	Counter   int64      `json:"counter"`
	CreatedAt time.Time  `json:"created_at"`
}

// ─── Reward Ledger ──────────────────────────────────────────────────────────

// AccountStatus guards ledger mutations: only ACTIVE accounts may be
// credited or debited.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
)

// ParseAccountStatus parses a wire name into an AccountStatus.
func ParseAccountStatus(name string) (AccountStatus, error) {
	switch AccountStatus(name) {
	case AccountActive, AccountSuspended:
		return AccountStatus(name), nil
	}
	return "", fmt.Errorf("unknown account status %q", name)
}

// Account is a user's reward balance. Created lazily on first accrual or
// lookup; never hard-deleted.
type Account struct {
	UserID    string        `json:"user_id"`
	Amount    int64         `json:"amount"`
	Status    AccountStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	CreatedAt time.Time     `json:"created_at"`
}

// EventKind labels a ledger mutation in the audit trail.
type EventKind string

const (
	EventAccrual  EventKind = "accrual"
	EventWriteOff EventKind = "write-off"
)

// Event is one append-only audit entry. Exactly one Event exists per
// successful ledger mutation; events are never updated or deleted.
type Event struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Value     int64     `json:"value"`
	Kind      EventKind `json:"kind"`
	Initiator string    `json:"initiator"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemInitiator marks ledger mutations driven by the settlement sweep
// rather than a user request.
const SystemInitiator = "system"

// ─── Shop ───────────────────────────────────────────────────────────────────

// Item is a shop listing purchasable with reward balance.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int64     `json:"stock"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attachment is a binary blob linked to a task.
type Attachment struct {
	ID          string    `json:"id"`
	TaskID      int64     `json:"task_id"`
	ContentType string    `json:"content_type"`
	Length      int64     `json:"length"`
	Content     []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultIdentity is the fallback user id when credential resolution fails.
const DefaultIdentity = "default"
