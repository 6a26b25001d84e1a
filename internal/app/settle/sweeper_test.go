package settle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

func testConfig() Config {
	return Config{
		WaitingAge:     0,
		ResolvedAge:    0,
		WaitingCount:   3,
		ResolvedCount:  3,
		ApproveReward:  10,
		CompleteReward: 25,
		TrashReward:    5,
		CreatorBonus:   50,
	}
}

// newTestSweeper builds a sweeper over a fresh in-memory store whose clock
// sits a minute in the future, so any open phase is already past the age
// thresholds.
func newTestSweeper(t *testing.T, cfg Config) (*Sweeper, *sqlite.DB, *task.Service) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tasks := task.NewService(db)
	sw := New(cfg, db, tasks, reward.NewLedger(db))
	sw.now = func() time.Time { return time.Now().Add(time.Minute) }
	return sw, db, tasks
}

func balance(t *testing.T, db *sqlite.DB, userID string) int64 {
	t.Helper()
	a, err := db.GetAccount(userID)
	require.NoError(t, err)
	return a.Amount
}

func vote(t *testing.T, db *sqlite.DB, taskID int64, voter string, vt domain.VoteType) {
	t.Helper()
	require.NoError(t, db.RecordVote(domain.Vote{VoterID: voter, TaskID: taskID, Type: vt}))
}

func TestApprovalSweepMovesTaskToToDo(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	id, err := tasks.Create(domain.Task{Title: "sort the recycling", Reward: 80, CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, id, v, domain.VoteApprove)
	}

	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusToDo, got.Status)

	for _, v := range []string{"v1", "v2", "v3"} {
		assert.Equal(t, int64(10), balance(t, db, v), "voter %s attendee reward", v)
	}

	// The claim removed the record and the crediting drained the votes.
	_, err = db.GetApproval(id)
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)
	n, err := db.CountVotes(id, domain.VoteApprove)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepSettlesAtMostOnce(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	id, err := tasks.Create(domain.Task{Title: "once only", CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, id, v, domain.VoteApprove)
	}

	require.NoError(t, sw.RunOnce())
	require.NoError(t, sw.RunOnce())

	// Nothing was claimable the second time, so no double credit.
	assert.Equal(t, int64(10), balance(t, db, "v1"))
}

func TestCompletionSweepPaysAssigneeAndCreator(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	id, err := tasks.Create(domain.Task{Title: "clean the pond", Reward: 80, CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	require.NoError(t, tasks.Assign(id, "worker"))

	// Resolving reopens a fresh RESOLVED voting phase.
	require.NoError(t, tasks.Transition(id, domain.StatusResolved))
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, id, v, domain.VoteApprove)
	}

	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	assert.Equal(t, int64(80), balance(t, db, "worker"), "assignee gets the task reward")
	assert.Equal(t, int64(50), balance(t, db, "creator"), "creator gets the bonus")
	assert.Equal(t, int64(25), balance(t, db, "v1"), "voter gets the completion attendee reward")
}

func TestCompletionSweepSkipsPayoutWithoutAssignee(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	id, err := tasks.Create(domain.Task{Title: "unassigned", Reward: 80, CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	require.NoError(t, tasks.Transition(id, domain.StatusResolved))
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, id, v, domain.VoteApprove)
	}

	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, int64(50), balance(t, db, "creator"))
}

func TestTrashingSweepCreditsRejectVoters(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	id, err := tasks.Create(domain.Task{Title: "bad idea", CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	vote(t, db, id, "fan", domain.VoteApprove)
	vote(t, db, id, "r1", domain.VoteReject)
	vote(t, db, id, "r2", domain.VoteReject)

	// Counter is -1, well under the threshold of 3: the trashing sweep takes it.
	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTrashed, got.Status)

	assert.Equal(t, int64(5), balance(t, db, "r1"))
	assert.Equal(t, int64(5), balance(t, db, "r2"))

	// The lone approver is not credited and gets no account.
	_, err = db.GetAccount("fan")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	n, err := db.CountVotes(id, domain.VoteApprove)
	require.NoError(t, err)
	assert.Zero(t, n, "leftover votes cleared on settlement")
}

func TestYoungPhaseIsLeftAlone(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())
	// Real clock: phases created a moment ago are younger than the one-hour
	// thresholds and must survive the run untouched.
	sw.cfg.WaitingAge = time.Hour
	sw.cfg.ResolvedAge = time.Hour
	sw.now = time.Now

	id, err := tasks.Create(domain.Task{Title: "too young", CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, id, v, domain.VoteApprove)
	}

	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForApprove, got.Status)
	a, err := db.GetApproval(id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.Counter)
}

func TestSettlementFailureDoesNotBlockRun(t *testing.T) {
	sw, db, tasks := newTestSweeper(t, testConfig())

	frozen, err := tasks.Create(domain.Task{Title: "frozen voter", CreatedBy: "creator"}, nil)
	require.NoError(t, err)
	healthy, err := tasks.Create(domain.Task{Title: "healthy", CreatedBy: "creator"}, nil)
	require.NoError(t, err)

	// Suspend one voter's account so crediting it fails mid-settlement.
	require.NoError(t, db.Accrue("bad", 1, domain.SystemInitiator))
	require.NoError(t, db.SetAccountStatus("bad", domain.AccountSuspended))

	for _, v := range []string{"bad", "v2", "v3"} {
		vote(t, db, frozen, v, domain.VoteApprove)
	}
	for _, v := range []string{"v1", "v2", "v3"} {
		vote(t, db, healthy, v, domain.VoteApprove)
	}

	// The run itself succeeds: the per-task failure is isolated.
	require.NoError(t, sw.RunOnce())

	got, err := tasks.Get(healthy)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusToDo, got.Status, "healthy task settles despite the other failing")

	// The failed task's claim is not rolled back.
	_, err = db.GetApproval(frozen)
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)
}
