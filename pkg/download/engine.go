// Package download executes a plan's artifact tasks over HTTP with bounded
// concurrency, segment-level parallelism for large files, resumption across
// process restarts, retry with backoff, and checksum verification. A task's
// bytes only ever appear at their final destination after verification.
package download

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/plan"
	"github.com/arthur-debert/lodestone/pkg/progress"
	"github.com/arthur-debert/lodestone/pkg/queue"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	// Concurrency is the worker pool size: at most this many tasks
	// download simultaneously.
	Concurrency int

	// SegmentThreshold is the file size above which a task is split into
	// ranged segments.
	SegmentThreshold int64

	// Segments is how many ranged segments a large task is split into.
	Segments int

	// MaxRetries bounds retry cycles per task after the first attempt.
	MaxRetries int

	// RetryBaseDelay and RetryMaxDelay shape the capped exponential
	// backoff between attempts.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// RequestTimeout bounds each network operation's connect and
	// response-header wait.
	RequestTimeout time.Duration

	UserAgent string
}

const (
	defaultConcurrency      = 4
	defaultSegmentThreshold = 32 << 20
	defaultSegments         = 4
	defaultMaxRetries       = 3
	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultRetryMaxDelay    = 8 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultUserAgent        = "lodestone"
)

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.SegmentThreshold <= 0 {
		c.SegmentThreshold = defaultSegmentThreshold
	}
	if c.Segments <= 0 {
		c.Segments = defaultSegments
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	Task      types.ArtifactTask
	State     types.TaskState
	Err       error
	Attempts  int
	BytesDone int64
}

// Report enumerates every task's outcome. A failed task never aborts its
// siblings, so a report can be a partial success.
type Report struct {
	Results   []TaskResult
	Cancelled bool
}

// Failed returns the results for tasks that ended in TaskFailed.
func (r *Report) Failed() []TaskResult {
	var out []TaskResult
	for _, res := range r.Results {
		if res.State == types.TaskFailed {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether every task completed.
func (r *Report) OK() bool {
	return !r.Cancelled && len(r.Failed()) == 0
}

// Engine is the bounded-concurrency download scheduler.
type Engine struct {
	cfg      Config
	client   *http.Client
	reporter *progress.Reporter
	store    *queue.Store
	logger   zerolog.Logger
}

// New creates an engine. The reporter may be nil for headless use; the
// store may be nil to skip queue persistence; a nil client gets a default
// with the configured header timeout.
func New(cfg Config, client *http.Client, reporter *progress.Reporter, store *queue.Store) *Engine {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.RequestTimeout,
			},
		}
	}
	if reporter == nil {
		reporter = progress.NewReporter(0)
	}
	return &Engine{
		cfg:      cfg,
		client:   client,
		reporter: reporter,
		store:    store,
		logger:   logging.GetLogger("download"),
	}
}

// Reporter exposes the engine's progress reporter for subscription.
func (e *Engine) Reporter() *progress.Reporter {
	return e.reporter
}

// Run executes every pending task in the plan and returns the full report.
// Cancellation is cooperative: in-flight tasks persist their partial state
// for a future resume and the pool drains without starting new work. Run
// itself only errors on setup problems; task failures live in the report.
func (e *Engine) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	e.reporter.Track(p.Tasks, p.Satisfied)

	if e.store != nil && len(p.Tasks) > 0 {
		record := queue.FromTasks(p.ID, p.Version, p.LayoutFingerprint, p.Tasks)
		// Snapshot partial progress from any sidecars left by an earlier
		// run, so the record reflects bytes already on disk.
		for idx := range record.Tasks {
			if state := loadState(record.Tasks[idx].Destination); state != nil {
				record.Tasks[idx].BytesDone = state.BytesDone()
			}
		}
		if err := e.store.Save(record); err != nil {
			return nil, err
		}
	}

	taskCh := make(chan types.ArtifactTask)
	results := make([]TaskResult, 0, len(p.Tasks))
	var resultsMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				res := e.dispatch(ctx, p.ID, task)
				resultsMu.Lock()
				results = append(results, res)
				resultsMu.Unlock()
			}
		}()
	}

	for _, task := range p.Tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()

	report := &Report{Results: results, Cancelled: ctx.Err() != nil}

	if e.store != nil && !report.Cancelled && len(report.Failed()) == 0 {
		e.store.Clear(p.ID)
	}
	e.reporter.Flush()

	e.logger.Info().
		Str("plan", p.ID).
		Int("tasks", len(p.Tasks)).
		Int("failed", len(report.Failed())).
		Bool("cancelled", report.Cancelled).
		Msg("Plan finished")
	return report, nil
}

// dispatch runs one task to a terminal state and records it everywhere it
// needs recording.
func (e *Engine) dispatch(ctx context.Context, planID string, task types.ArtifactTask) TaskResult {
	if ctx.Err() != nil {
		e.reporter.Update(task.ID, types.TaskCancelled, 0, task.Size)
		return TaskResult{Task: task, State: types.TaskCancelled, Err: errors.New(errors.ErrCancelled, "plan cancelled")}
	}

	res := e.runTask(ctx, task)
	e.reporter.Update(task.ID, res.State, res.BytesDone, task.Size)

	switch res.State {
	case types.TaskDone:
		if e.store != nil {
			e.store.MarkDone(planID, task.ID)
		}
	case types.TaskFailed:
		e.logger.Warn().
			Str("task", task.ID).
			Int("attempts", res.Attempts).
			Err(res.Err).
			Msg("Task failed")
	}
	return res
}
