package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_PriorityInvariant(t *testing.T) {
	assert.Less(t, KindDelete.Priority(), KindUpdate.Priority())
	assert.Equal(t, KindUpdate.Priority(), KindCustom.Priority())
	assert.Less(t, KindCustom.Priority(), KindCreate.Priority())
}

func TestQueue_FlushOrdersByPriority(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	players := newMemRepo("player", p.rec)
	players.seed("p1", "p2", "p5")

	reg := NewRegistry()
	require.NoError(t, reg.RegisterHandler("touch", func(context.Context, Session, Fields) error {
		p.rec.add("custom touch")
		return nil
	}))

	q := newTestQueue(p, WithAutoCommit(false), WithRegistry(reg))
	require.NoError(t, q.Create(ctx, players, Fields{F("id", "p3")}))
	require.NoError(t, q.Update(ctx, players, "p1", Fields{F("rating", 1500)}))
	require.NoError(t, q.Delete(ctx, players, "p2"))
	require.NoError(t, q.Custom(ctx, "touch", nil))
	require.NoError(t, q.Create(ctx, players, Fields{F("id", "p4")}))
	require.NoError(t, q.Delete(ctx, players, "p5"))

	q.Commit(ctx)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "mixed_page_order", []byte(strings.Join(p.rec.calls, "\n")+"\n"))

	stats := q.Stats()
	assert.Equal(t, int64(6), stats.OperationsSuccessful)
	assert.Equal(t, int64(0), stats.OperationsFailed)
}

func TestQueue_FlushOrdering_AnySubmissionOrder(t *testing.T) {
	kinds := []Kind{KindCreate, KindUpdate, KindDelete, KindCustom}

	// Every rotation of the submission order yields deletes, then updates/customs, then creates.
	for shift := range kinds {
		t.Run(fmt.Sprintf("rotation_%d", shift), func(t *testing.T) {
			ctx := context.Background()
			p := newStubProvider()
			repo := newMemRepo("player", p.rec)
			repo.seed("u", "d")

			reg := NewRegistry()
			require.NoError(t, reg.RegisterHandler("h", func(context.Context, Session, Fields) error {
				p.rec.add("custom h")
				return nil
			}))
			q := newTestQueue(p, WithAutoCommit(false), WithRegistry(reg))

			for i := range kinds {
				switch kinds[(i+shift)%len(kinds)] {
				case KindCreate:
					require.NoError(t, q.Create(ctx, repo, Fields{F("id", "c")}))
				case KindUpdate:
					require.NoError(t, q.Update(ctx, repo, "u", Fields{F("x", 1)}))
				case KindDelete:
					require.NoError(t, q.Delete(ctx, repo, "d"))
				case KindCustom:
					require.NoError(t, q.Custom(ctx, "h", nil))
				}
			}
			q.FlushPage(ctx)

			got := p.rec.mutations()
			require.Len(t, got, 4)
			assert.Equal(t, "delete player[d]", got[0])
			assert.ElementsMatch(t, []string{"update player[u]", "custom h"}, got[1:3])
			assert.Equal(t, "create player[c]", got[3])
		})
	}
}

func TestQueue_StableWithinPriority(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Create(ctx, repo, Fields{F("id", id)}))
	}
	q.FlushPage(ctx)

	assert.Equal(t, []string{"create player[a]", "create player[b]", "create player[c]"}, p.rec.mutations())
}

func TestQueue_AutoFlushBoundary(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithPageSize(3))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "1")}))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "2")}))
	assert.Empty(t, p.sessions, "N-1 operations must not flush")
	assert.Equal(t, 2, q.Len())

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "3")}))
	assert.Len(t, p.sessions, 1, "N-th operation flushes exactly once")
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(1), q.Stats().PagesProcessed)
}

func TestQueue_AutoCommitDisabled_NeverFlushesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithPageSize(2), WithAutoCommit(false))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Create(ctx, repo, Fields{F("id", fmt.Sprint(i))}))
	}

	assert.Empty(t, p.sessions)
	assert.Equal(t, 5, q.Len())
}

func TestQueue_EmptyCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	q := newTestQueue(p)

	before := q.Stats()
	q.Commit(ctx)
	q.FlushPage(ctx)

	assert.Empty(t, p.rec.calls, "no session and no repository calls")
	assert.Equal(t, before, q.Stats())
}

func TestQueue_RollbackCurrentPage(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Create(ctx, repo, Fields{F("id", fmt.Sprint(i))}))
	}

	assert.Equal(t, 4, q.RollbackCurrentPage())
	assert.Equal(t, 0, q.Stats().CurrentPageSize)
	assert.Equal(t, 0, q.RollbackCurrentPage())

	q.Commit(ctx)
	assert.Empty(t, p.rec.calls, "discarded operations never execute")
}

func TestQueue_RollbackCurrentPage_KeepsErrorQueue(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Delete(ctx, repo, "missing"))
	q.Commit(ctx)
	require.Len(t, q.Errors(), 1)

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "x")}))
	q.RollbackCurrentPage()

	assert.Len(t, q.Errors(), 1)
}

func TestQueue_RetryErrors_AllSucceed(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Update(ctx, repo, id, Fields{F("rating", 1)}))
	}
	q.Commit(ctx)
	require.Len(t, q.Errors(), 3)
	before := q.Stats()
	assert.Equal(t, int64(3), before.OperationsFailed)

	// The rows appear; the retry now succeeds.
	repo.seed("a", "b", "c")
	q.RetryErrors(ctx)

	after := q.Stats()
	assert.Empty(t, q.Errors())
	assert.Equal(t, 0, after.ErrorsPending)
	assert.Equal(t, before.OperationsSuccessful+3, after.OperationsSuccessful)
	assert.Equal(t, int64(2), after.PagesProcessed)
}

func TestQueue_RetryErrors_FailuresReturnToErrorQueue(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Delete(ctx, repo, "a"))
	require.NoError(t, q.Delete(ctx, repo, "b"))
	q.Commit(ctx)
	require.Len(t, q.Errors(), 2)

	repo.seed("a")
	q.RetryErrors(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].Operation.Key)
	assert.True(t, IsNotFound(errs[0].Err))
	assert.Equal(t, int64(3), q.Stats().OperationsFailed)
	assert.Equal(t, int64(1), q.Stats().OperationsSuccessful)
}

func TestQueue_RetryErrors_EmptyIsNoop(t *testing.T) {
	p := newStubProvider()
	q := newTestQueue(p)

	q.RetryErrors(context.Background())

	assert.Empty(t, p.rec.calls)
	assert.Equal(t, int64(0), q.Stats().PagesProcessed)
}

func TestQueue_RetryErrors_KeepsOriginalOperation(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "a", Fields{F("rating", 7)}))
	q.Commit(ctx)
	original := q.Errors()[0].Operation

	q.RetryErrors(ctx)

	retried := q.Errors()[0].Operation
	assert.Equal(t, original.Seq, retried.Seq)
	assert.Equal(t, original.Fields, retried.Fields)
}

func TestSnapshot_SuccessRate(t *testing.T) {
	tests := []struct {
		name       string
		successful int64
		failed     int64
		want       float64
	}{
		{"no operations", 0, 0, 0},
		{"all successful", 5, 0, 100},
		{"all failed", 0, 4, 0},
		{"mixed", 3, 1, 75},
		{"one third", 1, 2, 100.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stats{OperationsSuccessful: tt.successful, OperationsFailed: tt.failed}
			snap := s.snapshot(0, 0)
			assert.InDelta(t, tt.want, snap.SuccessRate, 1e-9)
			assert.Equal(t, tt.successful+tt.failed, snap.TotalOperations)
		})
	}
}

func TestSnapshot_AvgPageTime(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.snapshot(0, 0).AvgPageTime)

	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithPageSize(1))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "a")}))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "b")}))

	snap := q.Stats()
	assert.Equal(t, 2.0, snap.TotalProcessingTime)
	assert.Equal(t, 1.0, snap.AvgPageTime)
}

func TestQueue_ScenarioA_FiveCreatesPageSizeTwo(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithPageSize(2))

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Create(ctx, repo, Fields{F("id", fmt.Sprint(i))}))
	}
	assert.Len(t, p.sessions, 2)
	assert.Equal(t, 1, q.Len())

	q.Commit(ctx)

	require.Len(t, p.sessions, 3)
	stats := q.Stats()
	assert.Equal(t, int64(3), stats.PagesProcessed)
	assert.Equal(t, int64(5), stats.OperationsSuccessful)
	assert.Equal(t, int64(5), stats.ItemsProcessed)
	assert.Equal(t, 100.0, stats.SuccessRate)

	// Page sizes 2, 2, 1: each session commits after its creates.
	assert.Equal(t, []string{
		"begin", "create player[1]", "create player[2]", "commit",
		"begin", "create player[3]", "create player[4]", "commit",
		"begin", "create player[5]", "commit",
	}, p.rec.calls)
}

func TestQueue_ScenarioB_DeleteBeforeCreateSameKey(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	repo.seed("X")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Delete(ctx, repo, "X"))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "X"), F("tag", "fresh")}))
	q.Commit(ctx)

	assert.Equal(t, []string{"delete player[X]", "create player[X]"}, p.rec.mutations())
	assert.Equal(t, int64(2), q.Stats().OperationsSuccessful)
	tag, _ := repo.rows["X"].Get("tag")
	assert.Equal(t, "fresh", tag)
}

func TestQueue_ScenarioB_CreateSubmittedFirstStillRunsLast(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	repo.seed("X")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "X")}))
	require.NoError(t, q.Delete(ctx, repo, "X"))
	q.Commit(ctx)

	assert.Equal(t, []string{"delete player[X]", "create player[X]"}, p.rec.mutations())
	assert.Empty(t, q.Errors())
}

func TestQueue_ScenarioD_UpdateMissingKeyContinues(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	repo.seed("p1")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "ghost", Fields{F("rating", 1)}))
	require.NoError(t, q.Update(ctx, repo, "p1", Fields{F("rating", 2)}))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "p2")}))
	q.Commit(ctx)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.OperationsFailed)
	assert.Equal(t, int64(2), stats.OperationsSuccessful)

	errs := q.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "ghost", errs[0].Operation.Key)
	assert.Contains(t, errs[0].Message, "not found")
	assert.True(t, IsNotFound(errs[0].Err))

	assert.Equal(t, []string{"update player[p1]", "create player[p2]"}, p.rec.mutations())
	require.Len(t, p.sessions, 1)
	assert.True(t, p.sessions[0].committed, "page commits despite operation failure")
}

func TestQueue_SessionOpenFailure_FailsWholePage(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	p.openErr = errors.New("database is locked")
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "a")}))
	require.NoError(t, q.Delete(ctx, repo, "b"))
	q.Commit(ctx)

	stats := q.Stats()
	assert.Equal(t, int64(2), stats.OperationsFailed)
	assert.Equal(t, int64(0), stats.OperationsSuccessful)
	assert.Equal(t, int64(1), stats.PagesProcessed)
	assert.Equal(t, 0, stats.CurrentPageSize)

	errs := q.Errors()
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, IsPageError(e.Err))
		assert.Contains(t, e.Message, "page failed")
		assert.Contains(t, e.Message, "database is locked")
	}
	assert.Empty(t, p.rec.mutations())
}

func TestQueue_CommitFailure_DiscardsRecordedSuccesses(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	p.commitErr = errors.New("disk I/O error")
	repo := newMemRepo("player", p.rec)
	repo.seed("p1")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "p1", Fields{F("rating", 1)}))
	require.NoError(t, q.Update(ctx, repo, "missing", Fields{F("rating", 1)}))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "p2")}))
	q.Commit(ctx)

	stats := q.Stats()
	assert.Equal(t, int64(0), stats.OperationsSuccessful)
	assert.Equal(t, int64(3), stats.OperationsFailed)

	errs := q.Errors()
	require.Len(t, errs, 3, "every operation is recorded once, with the page message")
	for _, e := range errs {
		assert.True(t, IsPageError(e.Err))
		assert.Contains(t, e.Message, "disk I/O error")
	}
	assert.False(t, p.sessions[0].rolledBack, "a session is closed exactly once")
}

func TestQueue_RepositoryPanicIsOperationError(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	repo.panicOn = "bad"
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "bad")}))
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "good")}))
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	var oe *OpError
	require.ErrorAs(t, errs[0].Err, &oe)
	assert.Equal(t, ErrCodePanic, oe.Code)
	assert.Equal(t, int64(1), q.Stats().OperationsSuccessful)
	assert.True(t, p.sessions[0].committed)
}

func TestQueue_CreateConstraintViolation(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	repo.seed("dup")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "dup")}))
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	var oe *OpError
	require.ErrorAs(t, errs[0].Err, &oe)
	assert.Equal(t, ErrCodeDispatchFailed, oe.Code)
	assert.Contains(t, errs[0].Message, "UNIQUE constraint failed")
}

func TestQueue_CustomHandler(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()

	var gotSession Session
	var gotData Fields
	reg := NewRegistry()
	require.NoError(t, reg.RegisterHandler("match.report", func(_ context.Context, s Session, data Fields) error {
		gotSession = s
		gotData = data
		return nil
	}))
	q := newTestQueue(p, WithAutoCommit(false), WithRegistry(reg))

	require.NoError(t, q.Custom(ctx, "match.report", Fields{F("match_id", "m1"), F("winner_id", "p1")}))
	q.Commit(ctx)

	require.NotNil(t, gotSession)
	assert.Same(t, p.sessions[0], gotSession)
	assert.Equal(t, []string{"match_id", "winner_id"}, gotData.Names())
	assert.Equal(t, int64(1), q.Stats().OperationsSuccessful)
}

func TestQueue_CustomHandlerError(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterHandler("fail", func(context.Context, Session, Fields) error {
		return errors.New("bracket locked")
	}))
	q := newTestQueue(p, WithAutoCommit(false), WithRegistry(reg))

	require.NoError(t, q.Custom(ctx, "fail", nil))
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "bracket locked")
}

func TestQueue_UnknownHandlerFailsAtFlush(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Custom(ctx, "nope", nil), "unknown handlers are not rejected at queue time")
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	var oe *OpError
	require.ErrorAs(t, errs[0].Err, &oe)
	assert.Equal(t, ErrCodeUnknownHandler, oe.Code)
}

func TestQueue_Enqueue_UsageErrors(t *testing.T) {
	repo := newMemRepo("player", &recorder{})

	tests := []struct {
		name    string
		kind    Kind
		entity  Repository
		key     any
		handler string
	}{
		{"unknown kind", Kind(99), repo, "k", ""},
		{"create without entity", KindCreate, nil, nil, ""},
		{"update without key", KindUpdate, repo, nil, ""},
		{"delete without key", KindDelete, repo, nil, ""},
		{"delete without entity", KindDelete, nil, "k", ""},
		{"custom without handler", KindCustom, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(newStubProvider())
			err := q.Enqueue(context.Background(), tt.kind, tt.entity, nil, tt.key, tt.handler)

			var ue *UsageError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, 0, q.Len(), "nothing is queued")
		})
	}
}

func TestQueue_FieldsCopiedOnEnqueue(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	fields := Fields{F("id", "a"), F("tag", "before")}
	require.NoError(t, q.Create(ctx, repo, fields))
	fields[1].Value = "after"

	q.Commit(ctx)

	tag, _ := repo.rows["a"].Get("tag")
	assert.Equal(t, "before", tag)
}

func TestQueue_ErrorsReturnsIndependentFields(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "a", Fields{F("rating", 1)}))
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 1)
	errs[0].Operation.Fields[0].Value = 999

	repo.seed("a")
	q.RetryErrors(ctx)

	require.Empty(t, q.Errors())
	rating, _ := repo.rows["a"].Get("rating")
	assert.Equal(t, 1, rating)
}

func TestQueue_SequenceNumbers(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "a", nil))
	require.NoError(t, q.Update(ctx, repo, "b", nil))
	q.Commit(ctx)

	errs := q.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, int64(1), errs[0].Operation.Seq)
	assert.Equal(t, int64(2), errs[1].Operation.Seq)
}

func TestQueue_SavepointPerOperation(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	p.savepoints = true
	repo := newMemRepo("player", p.rec)
	repo.seed("p1")
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Update(ctx, repo, "p1", Fields{F("rating", 1)}))
	require.NoError(t, q.Update(ctx, repo, "ghost", Fields{F("rating", 1)}))
	q.Commit(ctx)

	assert.Equal(t, []string{
		"begin",
		"savepoint op_1", "update player[p1]", "release op_1",
		"savepoint op_2", "rollback_to op_2", "release op_2",
		"commit",
	}, p.rec.calls)
	assert.Equal(t, int64(1), q.Stats().OperationsFailed)
}

func TestQueue_SavepointFailure_FailsWholePage(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	p.savepoints = true
	p.savepointErr = errors.New("cannot open savepoint")
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "a")}))
	q.Commit(ctx)

	require.Len(t, p.sessions, 1)
	assert.True(t, p.sessions[0].rolledBack)
	assert.False(t, p.sessions[0].committed)
	assert.Equal(t, int64(1), q.Stats().OperationsFailed)
	assert.True(t, IsPageError(q.Errors()[0].Err))
}

func TestQueue_ResetStats(t *testing.T) {
	ctx := context.Background()
	p := newStubProvider()
	repo := newMemRepo("player", p.rec)
	q := newTestQueue(p, WithAutoCommit(false))

	require.NoError(t, q.Delete(ctx, repo, "missing"))
	q.Commit(ctx)
	require.NoError(t, q.Create(ctx, repo, Fields{F("id", "x")}))

	q.ResetStats()

	snap := q.Stats()
	assert.Equal(t, int64(0), snap.PagesProcessed)
	assert.Equal(t, int64(0), snap.OperationsFailed)
	assert.Equal(t, 1, snap.CurrentPageSize)
	assert.Equal(t, 1, snap.ErrorsPending)
}

func TestNew_Defaults(t *testing.T) {
	q := New(newStubProvider())

	assert.Equal(t, DefaultPageSize, q.PageSize())
	assert.True(t, q.AutoCommit())

	q = New(newStubProvider(), WithPageSize(0))
	assert.Equal(t, DefaultPageSize, q.PageSize(), "non-positive page size is ignored")
}
