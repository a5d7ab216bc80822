package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/internal/ctxkeys"
	"github.com/tradinglab/stockfetch/types"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	if err := db.AutoMigrate(&types.Job{}); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	return NewJobStore(db)
}

// recordingRecorder captures scheduler dispatch signals and signals on done
// so tests don't need to poll for the async dispatch goroutine to finish.
type recordingRecorder struct {
	done       chan struct{}
	runStatus  string
	misfired   bool
	misfireJob string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{done: make(chan struct{}, 1)}
}

func (r *recordingRecorder) RecordJobRun(jobID, status string, duration time.Duration) {
	r.runStatus = status
	r.done <- struct{}{}
}

func (r *recordingRecorder) RecordJobMisfire(jobID string) {
	r.misfired = true
	r.misfireJob = jobID
	r.done <- struct{}{}
}

func (r *recordingRecorder) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch to complete")
	}
}

func TestAddJob_DuplicateRejected(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())
	job := types.Job{ID: "job-a", CronExpr: "0 0 * * *", Enabled: true}

	if err := s.AddJob(context.Background(), job, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if err := s.AddJob(context.Background(), job, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error registering the same job id twice")
	}
}

func TestDispatch_MisfireSkipsRun(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())
	rec := newRecordingRecorder()
	s.WithRecorder(rec)

	ran := false
	entry := &jobEntry{job: types.Job{ID: "job-misfire", Executor: string(ExecutorAsync)}, fn: func(ctx context.Context) error {
		ran = true
		return nil
	}}

	triggeredAt := time.Now().Add(-time.Minute) // well past the 30s default grace
	s.dispatch(context.Background(), entry, triggeredAt)
	rec.waitDone(t)

	if !rec.misfired {
		t.Error("expected a recorded misfire")
	}
	if ran {
		t.Error("job function should not run on a misfired tick")
	}
}

func TestDispatch_RunsWithinGrace(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())
	rec := newRecordingRecorder()
	s.WithRecorder(rec)

	var gotJobID string
	entry := &jobEntry{job: types.Job{ID: "job-ok", Executor: string(ExecutorAsync)}, fn: func(ctx context.Context) error {
		gotJobID, _ = ctxkeys.JobID(ctx)
		return nil
	}}

	s.dispatch(context.Background(), entry, time.Now())
	rec.waitDone(t)

	if rec.runStatus != "success" {
		t.Errorf("runStatus = %q, want success", rec.runStatus)
	}
	if gotJobID != "job-ok" {
		t.Errorf("ctxkeys.JobID in job fn = %q, want job-ok", gotJobID)
	}
}

func TestDispatch_RecordsErrorStatus(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())
	rec := newRecordingRecorder()
	s.WithRecorder(rec)

	entry := &jobEntry{job: types.Job{ID: "job-fail", Executor: string(ExecutorAsync)}, fn: func(ctx context.Context) error {
		return errors.New("boom")
	}}

	s.dispatch(context.Background(), entry, time.Now())
	rec.waitDone(t)

	if rec.runStatus != "error" {
		t.Errorf("runStatus = %q, want error", rec.runStatus)
	}
}

func TestDispatch_OverlapGuardSkipsConcurrentTick(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())
	rec := newRecordingRecorder()
	s.WithRecorder(rec)

	release := make(chan struct{})
	entry := &jobEntry{job: types.Job{ID: "job-overlap", Executor: string(ExecutorAsync)}, fn: func(ctx context.Context) error {
		<-release
		return nil
	}}

	// First tick takes the lock and blocks in fn until release is closed.
	s.dispatch(context.Background(), entry, time.Now())

	// Give the first dispatch's goroutine a moment to acquire entry.lock.
	time.Sleep(50 * time.Millisecond)

	if entry.lock.TryLock() {
		entry.lock.Unlock()
		t.Fatal("expected the first tick to be holding entry.lock")
	}

	// A second tick while the first is in flight must not run concurrently:
	// dispatch's TryLock fails and it returns without dispatching.
	s.dispatch(context.Background(), entry, time.Now())

	close(release)
	rec.waitDone(t)
}

func TestStop_WaitsForInFlightAsyncJob(t *testing.T) {
	s := New(newTestStore(t), nil, zap.NewNop())

	release := make(chan struct{})
	entry := &jobEntry{job: types.Job{ID: "job-inflight", Executor: string(ExecutorAsync)}, fn: func(ctx context.Context) error {
		<-release
		return nil
	}}

	s.dispatch(context.Background(), entry, time.Now())
	time.Sleep(50 * time.Millisecond) // let the tick's goroutine start and block in fn

	stopDone := make(chan struct{})
	go func() {
		_ = s.Stop(context.Background())
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned before the in-flight async job finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the in-flight async job finished")
	}
}
