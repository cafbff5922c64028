package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"

	"github.com/arthur-debert/lodestone/pkg/types"
)

// ProgressView subscribes to a download run and renders its aggregate
// progress: a live bar on terminals, percentage lines when piped.
type ProgressView struct {
	format Format
	out    io.Writer

	mu          sync.Mutex
	bar         *pterm.ProgressbarPrinter
	lastPercent int
}

// NewProgressView creates a view writing to out in the given format.
func NewProgressView(format Format, out io.Writer) *ProgressView {
	return &ProgressView{format: format, out: out, lastPercent: -1}
}

// TaskUpdated surfaces per-task failures as they happen; everything else is
// covered by the aggregate.
func (v *ProgressView) TaskUpdated(s types.ProgressSnapshot) {
	if s.State != types.TaskFailed {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.format == FormatTerminal {
		pterm.Error.WithWriter(v.out).Printfln("download failed: %s", s.TaskID)
	} else {
		fmt.Fprintf(v.out, "download failed: %s\n", s.TaskID)
	}
}

// AggregateUpdated advances the bar to the aggregate's byte fraction.
func (v *ProgressView) AggregateUpdated(a types.AggregateProgress) {
	percent := int(a.Fraction() * 100)

	v.mu.Lock()
	defer v.mu.Unlock()
	if percent == v.lastPercent {
		return
	}
	v.lastPercent = percent

	switch v.format {
	case FormatTerminal:
		if v.bar == nil {
			bar, err := pterm.DefaultProgressbar.
				WithTotal(100).
				WithWriter(v.out).
				WithTitle("downloading").
				Start()
			if err != nil {
				return
			}
			v.bar = bar
		}
		v.bar.UpdateTitle(fmt.Sprintf("downloading (%d active)", a.ActiveTaskCount))
		if delta := percent - v.bar.Current; delta > 0 {
			v.bar.Add(delta)
		}
	default:
		// Piped output: one line per whole-percent step keeps logs short.
		fmt.Fprintf(v.out, "progress: %3d%% (%d/%d bytes)\n", percent, a.BytesDone, a.BytesTotal)
	}
}

// Close stops the live bar, if one was started.
func (v *ProgressView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bar != nil {
		_, _ = v.bar.Stop()
		v.bar = nil
	}
}
