package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/lodestone/pkg/types"
)

type recordingSubscriber struct {
	mu         sync.Mutex
	tasks      []types.ProgressSnapshot
	aggregates []types.AggregateProgress
}

func (r *recordingSubscriber) TaskUpdated(s types.ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, s)
}

func (r *recordingSubscriber) AggregateUpdated(a types.AggregateProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates = append(r.aggregates, a)
}

func (r *recordingSubscriber) taskUpdates() []types.ProgressSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ProgressSnapshot, len(r.tasks))
	copy(out, r.tasks)
	return out
}

func (r *recordingSubscriber) lastAggregate() (types.AggregateProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.aggregates) == 0 {
		return types.AggregateProgress{}, false
	}
	return r.aggregates[len(r.aggregates)-1], true
}

func task(id string, size int64) types.ArtifactTask {
	return types.ArtifactTask{ID: id, Size: size}
}

func TestTrackIncludesSatisfiedInTotals(t *testing.T) {
	r := NewReporter(time.Hour) // never tick during the test
	r.Track(
		[]types.ArtifactTask{task("a", 100)},
		[]types.ArtifactTask{task("b", 50)},
	)

	agg := r.Aggregate()
	assert.Equal(t, int64(150), agg.BytesTotal)
	assert.Equal(t, int64(50), agg.BytesDone)
	assert.Equal(t, 1, agg.StateCounts[types.TaskDone])
	assert.Equal(t, 1, agg.StateCounts[types.TaskQueued])
}

func TestCoalescing(t *testing.T) {
	r := NewReporter(time.Hour)
	sub := &recordingSubscriber{}
	r.Subscribe(sub)
	r.Track([]types.ArtifactTask{task("a", 100)}, nil)

	// Rapid non-terminal updates stay buffered until a flush.
	for i := int64(1); i <= 50; i++ {
		r.Update("a", types.TaskDownloading, i, 100)
	}
	assert.Empty(t, sub.taskUpdates())

	r.Flush()
	updates := sub.taskUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(50), updates[0].BytesDone)

	agg, ok := sub.lastAggregate()
	require.True(t, ok)
	assert.Equal(t, 1, agg.ActiveTaskCount)
}

func TestTerminalStateAlwaysEmits(t *testing.T) {
	r := NewReporter(time.Hour)
	sub := &recordingSubscriber{}
	r.Subscribe(sub)
	r.Track([]types.ArtifactTask{task("a", 10)}, nil)

	r.Update("a", types.TaskDone, 10, 10)

	updates := sub.taskUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, types.TaskDone, updates[0].State)

	agg, ok := sub.lastAggregate()
	require.True(t, ok)
	assert.Equal(t, 0, agg.ActiveTaskCount)
	assert.Equal(t, int64(10), agg.BytesDone)
}

func TestUnsubscribe(t *testing.T) {
	r := NewReporter(time.Hour)
	sub := &recordingSubscriber{}
	unsubscribe := r.Subscribe(sub)
	r.Track([]types.ArtifactTask{task("a", 10)}, nil)

	unsubscribe()
	r.Update("a", types.TaskDone, 10, 10)
	assert.Empty(t, sub.taskUpdates())
}

func TestFractionEmptyPlan(t *testing.T) {
	r := NewReporter(time.Hour)
	agg := r.Aggregate()
	assert.Equal(t, float64(1), agg.Fraction())
}
