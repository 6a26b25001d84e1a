// Package settle runs the periodic settlement sweep.
//
// The sweep lifecycle per run:
//  1. Completion sweep — RESOLVED phases past age+count thresholds
//  2. Approval sweep   — WAITING_FOR_APPROVE phases past age+count thresholds
//  3. Trashing sweep   — phases past age threshold WITHOUT the vote count
//
// Each eligible record is claimed by atomic delete-and-return, so a task is
// settled at most once no matter how many sweeps run concurrently. A failure
// while settling one claimed task is logged and does not block the rest of
// the run; the claim is not rolled back (at-most-once, not exactly-once). A
// failure before any claim aborts the run and the worker backs off.
package settle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// ─── Metrics ────────────────────────────────────────────────────────────────

var (
	settledTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoboard_settled_tasks_total",
		Help: "Tasks settled by the sweep, by outcome.",
	}, []string{"outcome"})

	creditedVoters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoboard_credited_voters_total",
		Help: "Voters credited an attendee reward, by outcome.",
	}, []string{"outcome"})

	sweepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoboard_sweep_failures_total",
		Help: "Sweep failures: per-task settlement errors and aborted runs.",
	}, []string{"kind"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecoboard_sweep_duration_seconds",
		Help:    "Duration of one full sweep run.",
		Buckets: prometheus.DefBuckets,
	})
)

// Config controls sweep eligibility, rewards, and timing.
type Config struct {
	WaitingAge    time.Duration // min age of a WAITING_FOR_APPROVE phase
	ResolvedAge   time.Duration // min age of a RESOLVED phase
	WaitingCount  int64         // min net approve counter for approval
	ResolvedCount int64         // min net approve counter for completion

	ApproveReward  int64 // per APPROVE voter when a task reaches TO_DO
	CompleteReward int64 // per APPROVE voter when a task reaches COMPLETED
	TrashReward    int64 // per REJECT voter when a task is trashed
	CreatorBonus   int64 // to the creator when a task reaches COMPLETED

	InitialDelay time.Duration
	Period       time.Duration
	Backoff      time.Duration // pause after an aborted run
}

// Sweeper is the settlement worker. Construct with explicit handles; it
// holds no ambient state.
type Sweeper struct {
	cfg    Config
	db     *sqlite.DB
	tasks  *task.Service
	ledger *reward.Ledger
	now    func() time.Time
}

// New creates a sweeper.
func New(cfg Config, db *sqlite.DB, tasks *task.Service, ledger *reward.Ledger) *Sweeper {
	return &Sweeper{cfg: cfg, db: db, tasks: tasks, ledger: ledger, now: time.Now}
}

// Run executes sweep runs on the configured period until ctx is cancelled.
// An aborted run (store-level failure before any claim) self-throttles by
// sleeping the backoff interval before resuming the normal period.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("[sweep] starting: delay=%s period=%s", s.cfg.InitialDelay, s.cfg.Period)

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.InitialDelay):
	}

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(); err != nil {
			sweepFailures.WithLabelValues("run").Inc()
			log.Printf("[sweep] run aborted, backing off %s: %v", s.cfg.Backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.Backoff):
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("[sweep] stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one full sweep: completion, then approval, then trashing.
// The order matters — the trashing sweep must only see records the first two
// sweeps left behind.
func (s *Sweeper) RunOnce() error {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()

	completed, err := s.db.ClaimSettleable(domain.StatusResolved, now.Add(-s.cfg.ResolvedAge), s.cfg.ResolvedCount)
	if err != nil {
		return fmt.Errorf("completion sweep: %w", err)
	}
	for _, a := range completed {
		s.settleOne("completed", a, s.settleCompleted)
	}

	approved, err := s.db.ClaimSettleable(domain.StatusWaitingForApprove, now.Add(-s.cfg.WaitingAge), s.cfg.WaitingCount)
	if err != nil {
		return fmt.Errorf("approval sweep: %w", err)
	}
	for _, a := range approved {
		s.settleOne("approved", a, s.settleApproved)
	}

	stale, err := s.db.ClaimStale(now.Add(-s.cfg.WaitingAge), now.Add(-s.cfg.ResolvedAge), s.cfg.WaitingCount, s.cfg.ResolvedCount)
	if err != nil {
		return fmt.Errorf("trashing sweep: %w", err)
	}
	for _, a := range stale {
		s.settleOne("trashed", a, s.settleTrashed)
	}

	if n := len(completed) + len(approved) + len(stale); n > 0 {
		log.Printf("[sweep] settled %d task(s): completed=%d approved=%d trashed=%d",
			n, len(completed), len(approved), len(stale))
	}
	return nil
}

// settleOne isolates one claimed task's settlement: an error is logged and
// counted but never propagates — the record is already claimed and the rest
// of the run must proceed.
func (s *Sweeper) settleOne(outcome string, a domain.Approval, settle func(domain.Approval) error) {
	if err := settle(a); err != nil {
		sweepFailures.WithLabelValues("task").Inc()
		log.Printf("[sweep] settlement failed task=%d phase=%s counter=%d: %v", a.TaskID, a.Phase, a.Counter, err)
		return
	}
	settledTasks.WithLabelValues(outcome).Inc()
}

// settleCompleted: credit APPROVE voters, complete the task, clear leftover
// votes, then pay the assignee the task's reward and the creator the bonus.
func (s *Sweeper) settleCompleted(a domain.Approval) error {
	if err := s.creditVoters(a.TaskID, domain.VoteApprove, s.cfg.CompleteReward, "completed"); err != nil {
		return err
	}
	if err := s.tasks.Transition(a.TaskID, domain.StatusCompleted); err != nil {
		return err
	}
	if err := s.db.ClearVotes(a.TaskID); err != nil {
		return err
	}

	t, err := s.tasks.Get(a.TaskID)
	if err != nil {
		return err
	}
	if t.Assignee != "" {
		if err := s.ledger.Accrue(t.Assignee, t.Reward, domain.SystemInitiator); err != nil {
			return err
		}
	}
	return s.ledger.Accrue(t.CreatedBy, s.cfg.CreatorBonus, domain.SystemInitiator)
}

// settleApproved: credit APPROVE voters, move the task to TO_DO, clear
// leftover votes.
func (s *Sweeper) settleApproved(a domain.Approval) error {
	if err := s.creditVoters(a.TaskID, domain.VoteApprove, s.cfg.ApproveReward, "approved"); err != nil {
		return err
	}
	if err := s.tasks.Transition(a.TaskID, domain.StatusApproved); err != nil {
		return err
	}
	return s.db.ClearVotes(a.TaskID)
}

// settleTrashed: credit REJECT voters, trash the task, clear leftover votes.
func (s *Sweeper) settleTrashed(a domain.Approval) error {
	if err := s.creditVoters(a.TaskID, domain.VoteReject, s.cfg.TrashReward, "trashed"); err != nil {
		return err
	}
	if err := s.tasks.Transition(a.TaskID, domain.StatusTrashed); err != nil {
		return err
	}
	return s.db.ClearVotes(a.TaskID)
}

// creditVoters drains the matching votes for a task (delete-and-return, so
// a voter is credited at most once per phase) and accrues the attendee
// reward to each.
func (s *Sweeper) creditVoters(taskID int64, t domain.VoteType, amount int64, outcome string) error {
	voters, err := s.db.TakeVoters(taskID, t)
	if err != nil {
		return err
	}
	for _, voter := range voters {
		if err := s.ledger.Accrue(voter, amount, domain.SystemInitiator); err != nil {
			return fmt.Errorf("credit voter %s: %w", voter, err)
		}
		creditedVoters.WithLabelValues(outcome).Inc()
	}
	return nil
}
