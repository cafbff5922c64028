package types

// ArtifactKind classifies what a planned artifact is, which decides its
// destination inside the layout.
type ArtifactKind string

const (
	ArtifactClient  ArtifactKind = "client"
	ArtifactLibrary ArtifactKind = "library"
	ArtifactNative  ArtifactKind = "native"
	ArtifactAsset   ArtifactKind = "asset"
)

// ChecksumKind names a supported digest algorithm.
type ChecksumKind string

const (
	ChecksumSHA1   ChecksumKind = "sha1"
	ChecksumSHA256 ChecksumKind = "sha256"
)

// Checksum is an expected digest for a planned artifact. A zero Checksum
// means no integrity data is available and verification is skipped.
type Checksum struct {
	Kind  ChecksumKind `json:"kind,omitempty"`
	Value string       `json:"value,omitempty"`
}

// IsZero reports whether no checksum is present.
func (c Checksum) IsZero() bool {
	return c.Value == ""
}

// ArtifactTask is one planned unit of download work. The ID is stable across
// runs for the same artifact (content hash for assets, repository path for
// the rest), which is what makes queue persistence and resumption safe.
type ArtifactTask struct {
	ID          string       `json:"taskId"`
	Kind        ArtifactKind `json:"kind"`
	URL         string       `json:"url"`
	Destination string       `json:"destination"`
	Size        int64        `json:"expectedSize"`
	Checksum    Checksum     `json:"expectedChecksum"`

	// ExtractTo is set on native tasks: the directory the verified archive
	// is unpacked into. Extract carries the archive's exclusion rules.
	ExtractTo string        `json:"extractTo,omitempty"`
	Extract   *ExtractRules `json:"extract,omitempty"`
}

// TaskState is a task's position in the download state machine.
type TaskState string

const (
	TaskQueued      TaskState = "queued"
	TaskProbing     TaskState = "probing"
	TaskDownloading TaskState = "downloading"
	TaskVerifying   TaskState = "verifying"
	TaskDone        TaskState = "done"
	TaskFailed      TaskState = "failed"
	TaskCancelled   TaskState = "cancelled"
)

// Terminal reports whether the state is final for the task.
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed || s == TaskCancelled
}

// SegmentState records resumable progress for one byte range of a task.
type SegmentState struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
	Done   int64 `json:"done"`
}

// DownloadState is the sidecar record for an in-flight task. It is owned by
// the worker processing the task and persisted next to the temporary file so
// an interrupted download can resume after a restart.
type DownloadState struct {
	TaskID       string         `json:"taskId"`
	URL          string         `json:"url"`
	Size         int64          `json:"size"`
	ETag         string         `json:"etag,omitempty"`
	LastModified string         `json:"lastModified,omitempty"`
	TempPath     string         `json:"tempPath"`
	Segments     []SegmentState `json:"segments"`
}

// BytesDone sums completed bytes across segments.
func (s *DownloadState) BytesDone() int64 {
	var n int64
	for _, seg := range s.Segments {
		n += seg.Done
	}
	return n
}

// Complete reports whether every segment has all its bytes.
func (s *DownloadState) Complete() bool {
	for _, seg := range s.Segments {
		if seg.Done < seg.Length {
			return false
		}
	}
	return true
}
