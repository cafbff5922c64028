package types

// ProgressSnapshot is the per-task progress record surfaced at the boundary.
type ProgressSnapshot struct {
	TaskID     string    `json:"taskId"`
	State      TaskState `json:"state"`
	BytesDone  int64     `json:"bytesDone"`
	BytesTotal int64     `json:"bytesTotal"`
}

// AggregateProgress summarizes the whole plan on each coalesced tick.
type AggregateProgress struct {
	BytesDone       int64             `json:"bytesDoneTotal"`
	BytesTotal      int64             `json:"bytesTotal"`
	ActiveTaskCount int               `json:"activeTaskCount"`
	StateCounts     map[TaskState]int `json:"stateCounts,omitempty"`
}

// Fraction returns completion in [0,1]; 1 when nothing is planned.
func (a AggregateProgress) Fraction() float64 {
	if a.BytesTotal == 0 {
		return 1
	}
	return float64(a.BytesDone) / float64(a.BytesTotal)
}
