package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Task errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("backward status transition refused")

	// Approval errors
	ErrApprovalNotFound = errors.New("no open approval phase for task")
	ErrAlreadyVoted     = errors.New("voter already voted in this phase")

	// Ledger errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotActive  = errors.New("account is not ACTIVE")
	ErrInsufficientFunds = errors.New("write-off exceeds balance")

	// Shop errors
	ErrItemNotFound = errors.New("item not found")
	ErrOutOfStock   = errors.New("item is out of stock")

	// Attachment errors
	ErrAttachmentNotFound = errors.New("attachment not found")
)
