package domain

import (
	"errors"
	"testing"
)

func TestStatusOrdering(t *testing.T) {
	ordered := []TaskStatus{
		StatusCreated,
		StatusWaitingForApprove,
		StatusToDo,
		StatusInProgress,
		StatusResolved,
		StatusCompleted,
		StatusTrashed,
	}

	for i, from := range ordered {
		for j, to := range ordered {
			got := from.CanTransitionTo(to)
			want := i <= j
			if got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestNormalizeApproved(t *testing.T) {
	if got := StatusApproved.Normalize(); got != StatusToDo {
		t.Errorf("StatusApproved.Normalize() = %s, want %s", got, StatusToDo)
	}
	// Every stored status normalizes to itself.
	for s := StatusCreated; s <= StatusTrashed; s++ {
		if got := s.Normalize(); got != s {
			t.Errorf("%s.Normalize() = %s, want identity", s, got)
		}
	}
}

func TestApprovedRemapAllowsForwardMove(t *testing.T) {
	// WAITING_FOR_APPROVE -> APPROVED must pass the ordinal check once
	// normalized, because the stored target is TO_DO.
	next := StatusApproved.Normalize()
	if !StatusWaitingForApprove.CanTransitionTo(next) {
		t.Error("WAITING_FOR_APPROVE -> normalized APPROVED should be allowed")
	}
	// ...but not from a status past TO_DO.
	if StatusResolved.CanTransitionTo(next) {
		t.Error("RESOLVED -> normalized APPROVED should be refused")
	}
}

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    TaskStatus
		wantErr bool
	}{
		{"CREATED", StatusCreated, false},
		{"WAITING_FOR_APPROVE", StatusWaitingForApprove, false},
		{"TO_DO", StatusToDo, false},
		{"APPROVED", StatusApproved, false},
		{"TRASHED", StatusTrashed, false},
		{"bogus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTaskStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTaskStatus(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTaskStatus(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTaskStatus(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestVoteDelta(t *testing.T) {
	if VoteApprove.Delta() != 1 {
		t.Errorf("VoteApprove.Delta() = %d, want 1", VoteApprove.Delta())
	}
	if VoteReject.Delta() != -1 {
		t.Errorf("VoteReject.Delta() = %d, want -1", VoteReject.Delta())
	}
}

func TestParseVoteType(t *testing.T) {
	if _, err := ParseVoteType("APPROVE"); err != nil {
		t.Errorf("APPROVE should parse: %v", err)
	}
	if _, err := ParseVoteType("approve"); err == nil {
		t.Error("lowercase approve should not parse")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	errs := []error{
		ErrTaskNotFound, ErrInvalidTransition, ErrApprovalNotFound,
		ErrAlreadyVoted, ErrAccountNotFound, ErrAccountNotActive,
		ErrInsufficientFunds, ErrItemNotFound, ErrOutOfStock,
	}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v and %v should be distinct", a, b)
			}
		}
	}
}
