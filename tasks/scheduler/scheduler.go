package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/internal/ctxkeys"
	"github.com/tradinglab/stockfetch/internal/pool"
	"github.com/tradinglab/stockfetch/types"
)

// Executor selects which concurrency model runs a job's tick.
type Executor string

const (
	// ExecutorAsync runs the tick on its own goroutine, unbounded beyond the
	// per-job overlap guard.
	ExecutorAsync Executor = "async"
	// ExecutorThread runs the tick on the bounded GoroutinePool, for
	// CPU/IO-heavy per-symbol work that should not run unbounded.
	ExecutorThread Executor = "thread"
)

// defaultMisfireGrace is how late a trigger may fire relative to its
// scheduled time before the tick is skipped instead of run late.
const defaultMisfireGrace = 30 * time.Second

// JobFunc is the work a scheduled job performs on each tick.
type JobFunc func(ctx context.Context) error

// jobEntry is the runtime registration for one job: its declaration, its
// work function, and the overlap guard protecting concurrent ticks.
type jobEntry struct {
	job     types.Job
	fn      JobFunc
	lock    sync.Mutex
	entryID cron.EntryID
}

// Scheduler drives cron-triggered jobs with persistence, misfire tolerance,
// a run-on-start option, and a choice of async or bounded-thread execution.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	store    *JobStore
	pool     *pool.GoroutinePool
	entries  map[string]*jobEntry
	misfire  time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	recorder JobRecorder

	// asyncRuns tracks in-flight ExecutorAsync ticks (ExecutorThread ticks are
	// already tracked by pool's own WaitGroup via Submit/Close), so Stop can
	// wait for a run in progress instead of returning out from under it.
	asyncRuns sync.WaitGroup
}

// JobRecorder receives observability signals from job dispatch. Satisfied by
// *metrics.Collector; a nil recorder (the default) records nothing.
type JobRecorder interface {
	RecordJobRun(jobID, status string, duration time.Duration)
	RecordJobMisfire(jobID string)
}

// New builds a Scheduler backed by store for persistence and threadPool for
// ExecutorThread jobs. A nil threadPool gets a 20-worker default.
func New(store *JobStore, threadPool *pool.GoroutinePool, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threadPool == nil {
		cfg := pool.DefaultGoroutinePoolConfig()
		cfg.MaxWorkers = 20
		threadPool = pool.NewGoroutinePool(cfg)
	}
	return &Scheduler{
		store:   store,
		pool:    threadPool,
		entries: make(map[string]*jobEntry),
		misfire: defaultMisfireGrace,
		logger:  logger,
	}
}

// WithMisfireGrace overrides the default 30s misfire tolerance.
func (s *Scheduler) WithMisfireGrace(d time.Duration) *Scheduler {
	s.misfire = d
	return s
}

// WithRecorder attaches a JobRecorder (typically *metrics.Collector) that
// observes every dispatch: run outcome/duration, and skipped misfires.
func (s *Scheduler) WithRecorder(r JobRecorder) *Scheduler {
	s.recorder = r
	return s
}

// AddJob registers job and persists its declaration. Must be called before Start.
func (s *Scheduler) AddJob(ctx context.Context, job types.Job, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.ID]; exists {
		return fmt.Errorf("scheduler: duplicate job id %q", job.ID)
	}
	if job.Executor == "" {
		job.Executor = string(ExecutorAsync)
	}

	if err := s.store.Upsert(ctx, job); err != nil {
		return fmt.Errorf("scheduler: persist job %q: %w", job.ID, err)
	}

	s.entries[job.ID] = &jobEntry{job: job, fn: fn}
	return nil
}

// Start parses every registered job's cron expression, wires it into the
// underlying cron.Cron, and begins dispatching ticks. Jobs flagged
// RunOnStart get a one-shot immediate fire scheduled via time.AfterFunc
// *after* Start returns, rather than being invoked inline during AddJob —
// an inline call would run before the cron event loop (and this Scheduler's
// own bookkeeping) is up, racing initialization.
func (s *Scheduler) Start() error {
	s.mu.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	// Cron expressions are evaluated in China Standard Time (UTC+8, no DST).
	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(time.FixedZone("Asia/Shanghai", 8*60*60)))

	runOnStart := make([]*jobEntry, 0)
	for _, entry := range s.entries {
		entry := entry
		if !entry.job.Enabled {
			continue
		}

		entryID, err := s.cron.AddFunc(entry.job.CronExpr, func() {
			s.dispatch(ctx, entry, time.Now())
		})
		if err != nil {
			s.mu.Unlock()
			cancel()
			return fmt.Errorf("scheduler: invalid cron expr for job %q: %w", entry.job.ID, err)
		}
		entry.entryID = entryID

		if entry.job.RunOnStart {
			runOnStart = append(runOnStart, entry)
		}
	}

	s.cron.Start()
	s.mu.Unlock()

	for _, entry := range runOnStart {
		entry := entry
		time.AfterFunc(time.Millisecond, func() {
			s.dispatch(ctx, entry, time.Now())
		})
	}

	s.logger.Info("scheduler started", zap.Int("jobs", len(s.entries)))
	return nil
}

// dispatch enforces the misfire grace window and overlap guard, then runs
// the job's tick on its declared executor.
func (s *Scheduler) dispatch(ctx context.Context, entry *jobEntry, triggeredAt time.Time) {
	if !entry.lock.TryLock() {
		s.logger.Warn("job still running, skipping tick", zap.String("job", entry.job.ID))
		return
	}

	run := func() {
		defer entry.lock.Unlock()

		if time.Since(triggeredAt) > s.misfire {
			s.logger.Warn("misfire grace exceeded, skipping tick",
				zap.String("job", entry.job.ID), zap.Duration("delay", time.Since(triggeredAt)))
			if s.recorder != nil {
				s.recorder.RecordJobMisfire(entry.job.ID)
			}
			return
		}

		s.logger.Debug("job started", zap.String("job", entry.job.ID))
		start := time.Now()
		runErr := entry.fn(ctxkeys.WithJobID(ctx, entry.job.ID))
		now := time.Now()

		var nextRun time.Time
		if s.cron != nil && entry.entryID != 0 {
			nextRun = s.cron.Entry(entry.entryID).Next
		}

		if err := s.store.RecordRun(ctx, entry.job.ID, now, nextRun, runErr); err != nil {
			s.logger.Warn("failed to record job run", zap.String("job", entry.job.ID), zap.Error(err))
		}
		if s.recorder != nil {
			status := "success"
			if runErr != nil {
				status = "error"
			}
			s.recorder.RecordJobRun(entry.job.ID, status, now.Sub(start))
		}
		if runErr != nil {
			s.logger.Error("job failed", zap.String("job", entry.job.ID), zap.Error(runErr))
		} else {
			s.logger.Debug("job completed", zap.String("job", entry.job.ID))
		}
	}

	if Executor(entry.job.Executor) == ExecutorThread {
		if err := s.pool.Submit(ctx, func(ctx context.Context) error {
			run()
			return nil
		}); err != nil {
			entry.lock.Unlock()
			s.logger.Warn("thread pool submit failed, dropping tick", zap.String("job", entry.job.ID), zap.Error(err))
		}
		return
	}

	s.asyncRuns.Add(1)
	go func() {
		defer s.asyncRuns.Done()
		run()
	}()
}

// Stop cancels in-flight job context propagation, waits for the cron
// scheduler to stop, waits for every in-flight ExecutorAsync tick or for ctx
// to expire (whichever comes first), then closes the thread pool. ctx bounds
// only the wait for ExecutorAsync ticks.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	asyncDone := make(chan struct{})
	go func() {
		s.asyncRuns.Wait()
		close(asyncDone)
	}()
	select {
	case <-asyncDone:
	case <-ctx.Done():
		s.logger.Warn("stop deadline reached before in-flight async jobs finished")
	}

	s.pool.Close()
	s.logger.Info("scheduler stopped")
	return nil
}
