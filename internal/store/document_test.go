package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(Config{Dialect: "sqlite", DSN: "file::memory:?cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTaskRecordLifecycleAndTerminalIdempotence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &TaskRecord{
		TaskID: "T42", TaskType: "APBookkeeper", ThreadKey: "t1",
		UserID: "u1", CompanyID: "c1", Status: TaskQueued,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, s.CreateTaskRecord(ctx, rec))

	got, err := s.GetTaskRecord(ctx, "u1", "t1", "T42")
	require.NoError(t, err)
	require.Equal(t, TaskQueued, got.Status)

	require.NoError(t, s.UpdateTaskStatus(ctx, "u1", "t1", "T42", TaskCompleted, []byte(`{"booked":2}`), ""))

	got, err = s.GetTaskRecord(ctx, "u1", "t1", "T42")
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, got.Status)

	// Terminal records never re-open.
	err = s.UpdateTaskStatus(ctx, "u1", "t1", "T42", TaskFailed, nil, "boom")
	require.ErrorIs(t, err, ErrNoTerminalTransition)

	got, err = s.GetTaskRecord(ctx, "u1", "t1", "T42")
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, got.Status)
}

func TestGetTaskRecordNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetTaskRecord(ctx, "u1", "t1", "missing")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSchedulerJobUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := &SchedulerJob{
		JobID: "mandates/acme_invoice_sync", MandatePath: "mandates/acme", JobType: "invoice_sync",
		CronExpression: "0 3 * * *", Timezone: "UTC",
		NextExecution: time.Now().Add(-time.Second), Enabled: true,
	}
	require.NoError(t, s.SaveSchedulerJob(ctx, job))
	require.NoError(t, s.SaveSchedulerJob(ctx, job)) // second save upserts

	due, err := s.ListDueJobs(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1, "saving the same job twice must yield exactly one record")
}

func TestListDueJobsExcludesFutureExecutions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	future := &SchedulerJob{
		JobID: "mandates/acme_payroll", MandatePath: "mandates/acme", JobType: "payroll",
		CronExpression: "0 3 * * *", Timezone: "UTC",
		NextExecution: time.Now().Add(time.Hour), Enabled: true,
	}
	require.NoError(t, s.SaveSchedulerJob(ctx, future))

	due, err := s.ListDueJobs(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, due)
}
