package download

import (
	"encoding/json"
	"os"

	"github.com/arthur-debert/lodestone/pkg/types"
)

// Sidecar files live next to the temporary download file and record segment
// progress plus the server identity (size, etag) the partial was fetched
// against. Both are engine-internal: a corrupt or stale sidecar just means
// the task restarts from zero.

const (
	tempSuffix    = ".part"
	sidecarSuffix = ".part.state"
)

func tempPath(destination string) string {
	return destination + tempSuffix
}

func sidecarPath(destination string) string {
	return destination + sidecarSuffix
}

// loadState reads a task's sidecar, returning nil when absent or unreadable.
func loadState(destination string) *types.DownloadState {
	data, err := os.ReadFile(sidecarPath(destination))
	if err != nil {
		return nil
	}
	var state types.DownloadState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	return &state
}

// saveState persists a task's sidecar. Best-effort: a failed save only
// costs resumability, not correctness.
func saveState(destination string, state *types.DownloadState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = os.WriteFile(sidecarPath(destination), data, 0644)
}

// discardPartial removes a task's temporary file and sidecar.
func discardPartial(destination string) {
	_ = os.Remove(tempPath(destination))
	_ = os.Remove(sidecarPath(destination))
}

// resumable reports whether a persisted state still matches what the server
// is offering: same URL, same size, same etag when both sides have one, and
// a temp file of the expected size on disk.
func resumable(state *types.DownloadState, url string, size int64, etag string) bool {
	if state == nil || state.URL != url || state.Size != size || size <= 0 {
		return false
	}
	if state.ETag != "" && etag != "" && state.ETag != etag {
		return false
	}
	info, err := os.Stat(state.TempPath)
	if err != nil || info.Size() != size {
		return false
	}
	return len(state.Segments) > 0
}
