// Package progress aggregates per-task download progress and fans it out to
// subscribers at a bounded rate. The reporter is decoupled from the engine
// so the engine stays testable with no boundary attached.
package progress

import (
	"sync"
	"time"

	"github.com/arthur-debert/lodestone/pkg/types"
)

// DefaultInterval is the coalescing tick used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Subscriber receives coalesced progress updates. Callbacks run on the
// updating goroutine and must not block.
type Subscriber interface {
	TaskUpdated(types.ProgressSnapshot)
	AggregateUpdated(types.AggregateProgress)
}

type taskEntry struct {
	snapshot types.ProgressSnapshot
	dirty    bool
}

// Reporter tracks every task in the current plan and emits one per-task
// update for each changed task plus a single aggregate per tick. Emission
// happens inline from Update calls, rate-limited by the interval; terminal
// state changes always flush so no completion is ever delayed.
type Reporter struct {
	interval time.Duration

	mu          sync.Mutex
	subscribers map[int]Subscriber
	nextID      int
	tasks       map[string]*taskEntry
	order       []string
	lastEmit    time.Time
}

// NewReporter creates a reporter with the given coalescing interval; zero
// means DefaultInterval.
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		interval:    interval,
		subscribers: make(map[int]Subscriber),
		tasks:       make(map[string]*taskEntry),
	}
}

// Subscribe registers a subscriber and returns a function that removes it.
// Subscribing or unsubscribing never affects engine behavior.
func (r *Reporter) Subscribe(s Subscriber) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subscribers[id] = s
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// Track registers the plan's tasks before any download starts. Satisfied
// tasks are recorded as already done so totals cover the whole plan.
func (r *Reporter) Track(pending, satisfied []types.ArtifactTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range pending {
		r.track(t, types.TaskQueued, 0)
	}
	for _, t := range satisfied {
		r.track(t, types.TaskDone, t.Size)
	}
}

func (r *Reporter) track(t types.ArtifactTask, state types.TaskState, done int64) {
	if _, ok := r.tasks[t.ID]; ok {
		return
	}
	r.tasks[t.ID] = &taskEntry{snapshot: types.ProgressSnapshot{
		TaskID:     t.ID,
		State:      state,
		BytesDone:  done,
		BytesTotal: t.Size,
	}}
	r.order = append(r.order, t.ID)
}

// Update records new progress for one task and emits if a tick has elapsed
// or the task reached a terminal state.
func (r *Reporter) Update(taskID string, state types.TaskState, bytesDone, bytesTotal int64) {
	r.mu.Lock()
	entry, ok := r.tasks[taskID]
	if !ok {
		entry = &taskEntry{snapshot: types.ProgressSnapshot{TaskID: taskID}}
		r.tasks[taskID] = entry
		r.order = append(r.order, taskID)
	}
	entry.snapshot.State = state
	entry.snapshot.BytesDone = bytesDone
	if bytesTotal > 0 {
		entry.snapshot.BytesTotal = bytesTotal
	}
	entry.dirty = true

	force := state.Terminal()
	if !force && time.Since(r.lastEmit) < r.interval {
		r.mu.Unlock()
		return
	}
	r.emitLocked()
}

// Flush emits all pending updates regardless of the tick.
func (r *Reporter) Flush() {
	r.mu.Lock()
	r.emitLocked()
}

// Aggregate returns the current aggregate without emitting.
func (r *Reporter) Aggregate() types.AggregateProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregateLocked()
}

// emitLocked sends dirty task snapshots and one aggregate to every
// subscriber, then releases the lock copied-out first so subscriber
// callbacks never run under it.
func (r *Reporter) emitLocked() {
	var changed []types.ProgressSnapshot
	for _, id := range r.order {
		entry := r.tasks[id]
		if entry.dirty {
			changed = append(changed, entry.snapshot)
			entry.dirty = false
		}
	}
	aggregate := r.aggregateLocked()
	subs := make([]Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		subs = append(subs, s)
	}
	r.lastEmit = time.Now()
	r.mu.Unlock()

	for _, s := range subs {
		for _, snapshot := range changed {
			s.TaskUpdated(snapshot)
		}
		s.AggregateUpdated(aggregate)
	}
}

func (r *Reporter) aggregateLocked() types.AggregateProgress {
	agg := types.AggregateProgress{StateCounts: make(map[types.TaskState]int)}
	for _, entry := range r.tasks {
		s := entry.snapshot
		agg.BytesDone += s.BytesDone
		agg.BytesTotal += s.BytesTotal
		agg.StateCounts[s.State]++
		switch s.State {
		case types.TaskProbing, types.TaskDownloading, types.TaskVerifying:
			agg.ActiveTaskCount++
		}
	}
	return agg
}
