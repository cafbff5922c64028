// Package queue persists the pending task set of a plan so an interrupted
// run can resume without re-planning. Records are JSON files keyed by plan
// ID; unknown fields are ignored on read and a corrupt record is treated as
// absent, never as a fatal error.
package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// TaskRecord is one pending task in a persisted plan. It carries everything
// needed to rebuild the task on a later run, so resuming never re-resolves
// the version. BytesDone is a progress snapshot taken when the record was
// written; segment-level offsets live in the engine's sidecar files.
type TaskRecord struct {
	TaskID           string              `json:"taskId"`
	Kind             types.ArtifactKind  `json:"kind,omitempty"`
	URL              string              `json:"url"`
	Destination      string              `json:"destination"`
	ExpectedSize     int64               `json:"expectedSize"`
	ExpectedChecksum types.Checksum      `json:"expectedChecksum"`
	BytesDone        int64               `json:"bytesDone"`
	ExtractTo        string              `json:"extractTo,omitempty"`
	Extract          *types.ExtractRules `json:"extract,omitempty"`
}

// Record is the durable form of one plan's unfinished work.
type Record struct {
	PlanID            string       `json:"planId"`
	Version           string       `json:"version"`
	LayoutFingerprint string       `json:"layoutFingerprint"`
	SavedAt           time.Time    `json:"savedAt"`
	Tasks             []TaskRecord `json:"tasks"`
}

// Store reads and writes plan records under a state directory.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu sync.Mutex
}

// NewStore creates a store rooted at dir (usually the layout's state dir).
func NewStore(dir string) *Store {
	return &Store{
		dir:    filepath.Join(dir, "queue"),
		logger: logging.GetLogger("queue"),
	}
}

// Save writes the record for a plan's pending tasks, replacing any previous
// record with the same plan ID.
func (s *Store) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.SavedAt.IsZero() {
		record.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot encode queue record")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create queue directory %s", s.dir)
	}

	// Write-then-rename so a crash never leaves a truncated record.
	path := s.recordPath(record.PlanID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write queue record for plan %s", record.PlanID)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot commit queue record for plan %s", record.PlanID)
	}
	return nil
}

// Load returns the persisted record for a plan, or nil when none exists. A
// corrupt or unreadable record is dropped and reported as nil.
func (s *Store) Load(planID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.recordPath(planID))
	if err != nil {
		return nil
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn().
			Str("plan", planID).
			Err(err).
			Msg("Dropping corrupt queue record")
		_ = os.Remove(s.recordPath(planID))
		return nil
	}
	return &record
}

// Validate checks a loaded record against the current request. A record for
// a different version or layout is stale: it is cleared and nil returned.
func (s *Store) Validate(record *Record, version, layoutFingerprint string) *Record {
	if record == nil {
		return nil
	}
	if record.Version != version || record.LayoutFingerprint != layoutFingerprint {
		s.logger.Info().
			Str("plan", record.PlanID).
			Str("recordVersion", record.Version).
			Str("requested", version).
			Msg("Discarding queue record built for a different version or layout")
		s.Clear(record.PlanID)
		return nil
	}
	return record
}

// MarkDone removes one task from a plan's record, deleting the record when
// it was the last task.
func (s *Store) MarkDone(planID, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.recordPath(planID))
	if err != nil {
		return
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return
	}

	kept := record.Tasks[:0]
	for _, t := range record.Tasks {
		if t.TaskID != taskID {
			kept = append(kept, t)
		}
	}
	record.Tasks = kept

	if len(record.Tasks) == 0 {
		_ = os.Remove(s.recordPath(planID))
		return
	}
	if data, err = json.MarshalIndent(record, "", "  "); err == nil {
		_ = os.WriteFile(s.recordPath(planID), data, 0644)
	}
}

// Clear removes a plan's record entirely.
func (s *Store) Clear(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.recordPath(planID))
}

func (s *Store) recordPath(planID string) string {
	return filepath.Join(s.dir, planID+".json")
}

// FromTasks builds a Record from a plan's pending tasks.
func FromTasks(planID, version, layoutFingerprint string, tasks []types.ArtifactTask) *Record {
	record := &Record{
		PlanID:            planID,
		Version:           version,
		LayoutFingerprint: layoutFingerprint,
	}
	for _, t := range tasks {
		record.Tasks = append(record.Tasks, TaskRecord{
			TaskID:           t.ID,
			Kind:             t.Kind,
			URL:              t.URL,
			Destination:      t.Destination,
			ExpectedSize:     t.Size,
			ExpectedChecksum: t.Checksum,
			ExtractTo:        t.ExtractTo,
			Extract:          t.Extract,
		})
	}
	return record
}

// ArtifactTasks rebuilds the pending task set from a persisted record, the
// inverse of FromTasks.
func (r *Record) ArtifactTasks() []types.ArtifactTask {
	tasks := make([]types.ArtifactTask, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		tasks = append(tasks, types.ArtifactTask{
			ID:          t.TaskID,
			Kind:        t.Kind,
			URL:         t.URL,
			Destination: t.Destination,
			Size:        t.ExpectedSize,
			Checksum:    t.ExpectedChecksum,
			ExtractTo:   t.ExtractTo,
			Extract:     t.Extract,
		})
	}
	return tasks
}
