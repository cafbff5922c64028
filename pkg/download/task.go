package download

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arthur-debert/lodestone/pkg/checksum"
	lerrors "github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/extract"
	"github.com/arthur-debert/lodestone/pkg/layout"
	"github.com/arthur-debert/lodestone/pkg/types"
)

const (
	readBufferSize  = 64 << 10
	stateSaveStride = 1 << 20
)

// runTask drives one task through its attempts to a terminal state.
func (e *Engine) runTask(ctx context.Context, task types.ArtifactTask) TaskResult {
	res := TaskResult{Task: task, State: types.TaskFailed}
	useRanges := true
	maxAttempts := 1 + e.cfg.MaxRetries

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts++

		n, err := e.attempt(ctx, task, useRanges)
		res.BytesDone = n
		if err == nil {
			res.State = types.TaskDone
			res.Err = nil
			return res
		}

		if ctx.Err() != nil || goerrors.Is(err, context.Canceled) {
			res.State = types.TaskCancelled
			res.Err = lerrors.Wrapf(err, lerrors.ErrCancelled, "task %s cancelled", task.ID)
			return res
		}

		var ae *attemptError
		if !goerrors.As(err, &ae) {
			res.Err = lerrors.Wrapf(err, lerrors.ErrNetworkFailure, "task %s failed", task.ID)
			return res
		}

		if ae.rangeFallback && useRanges {
			// The server rejected our range view of the file; discard the
			// partial and restart with a single whole-file stream. The
			// fallback does not consume the retry budget.
			e.logger.Debug().Str("task", task.ID).Msg("Range rejected, falling back to whole file")
			discardPartial(task.Destination)
			useRanges = false
			attempt--
			continue
		}

		res.Err = lerrors.Wrapf(ae, ae.code, "task %s failed after %d attempt(s)", task.ID, res.Attempts)
		if !ae.transient {
			return res
		}
		if attempt < maxAttempts {
			if err := sleep(ctx, e.backoff(attempt)); err != nil {
				res.State = types.TaskCancelled
				res.Err = lerrors.Wrapf(err, lerrors.ErrCancelled, "task %s cancelled", task.ID)
				return res
			}
		}
	}
	return res
}

// attempt performs one full probe/download/verify cycle. On success the
// verified file sits at the task's destination; on failure the temporary
// file and sidecar are either preserved for resumption (transient errors,
// cancellation) or already discarded (checksum mismatch).
func (e *Engine) attempt(ctx context.Context, task types.ArtifactTask, useRanges bool) (int64, error) {
	dest := task.Destination
	if err := layout.EnsureParent(dest); err != nil {
		return 0, terminalErr(lerrors.ErrDirCreate, err)
	}

	e.reporter.Update(task.ID, types.TaskProbing, 0, task.Size)
	size, etag, acceptRanges, err := e.probe(ctx, task)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		size = task.Size
	}

	state := loadState(dest)
	if resumable(state, task.URL, size, etag) {
		e.logger.Debug().
			Str("task", task.ID).
			Int64("resumeFrom", state.BytesDone()).
			Msg("Resuming partial download")
	} else {
		discardPartial(dest)
		state = e.newState(task, size, etag, useRanges && acceptRanges)
	}

	f, err := os.OpenFile(state.TempPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, terminalErr(lerrors.ErrFileCreate, err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return 0, terminalErr(lerrors.ErrFileWrite, err)
		}
	}

	e.reporter.Update(task.ID, types.TaskDownloading, state.BytesDone(), size)

	dlErr := e.downloadSegments(ctx, f, task, state, size)
	if dlErr != nil {
		saveState(dest, state)
		f.Close()
		return state.BytesDone(), dlErr
	}
	if err := f.Close(); err != nil {
		return state.BytesDone(), terminalErr(lerrors.ErrFileWrite, err)
	}

	e.reporter.Update(task.ID, types.TaskVerifying, state.BytesDone(), size)
	ok, err := checksum.VerifyFile(state.TempPath, task.Checksum)
	if err != nil {
		return state.BytesDone(), terminalErr(lerrors.ErrInternal, err)
	}
	if !ok {
		discardPartial(dest)
		return 0, &attemptError{
			code:      lerrors.ErrChecksumMismatch,
			transient: true,
			err:       fmt.Errorf("checksum mismatch for %s", task.URL),
		}
	}

	// Only verified bytes ever reach the destination path.
	_ = os.Remove(sidecarPath(dest))
	if err := os.Rename(state.TempPath, dest); err != nil {
		return state.BytesDone(), terminalErr(lerrors.ErrFileWrite, err)
	}

	if task.Kind == types.ArtifactNative && task.ExtractTo != "" {
		if err := extract.Archive(dest, task.ExtractTo, task.Extract); err != nil {
			return state.BytesDone(), terminalErr(lerrors.ErrExtractFailed, err)
		}
	}

	return state.BytesDone(), nil
}

// probe asks the server about the artifact: size, etag, range support.
// Servers that reject HEAD are tolerated; the task then runs without
// resumption or segmenting metadata.
func (e *Engine) probe(ctx context.Context, task types.ArtifactTask) (size int64, etag string, acceptRanges bool, err error) {
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, task.URL, nil)
	if err != nil {
		return 0, "", false, terminalErr(lerrors.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, "", false, ctx.Err()
		}
		return 0, "", false, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		etag = resp.Header.Get("ETag")
		acceptRanges = strings.Contains(strings.ToLower(resp.Header.Get("Accept-Ranges")), "bytes")
		return resp.ContentLength, etag, acceptRanges, nil
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		return task.Size, "", false, nil
	default:
		return 0, "", false, classifyStatus(resp.StatusCode,
			fmt.Errorf("HEAD %s: %s", task.URL, resp.Status))
	}
}

// newState builds a fresh download state: segmented when the file is large
// enough and the server supports ranges, a single stream otherwise.
func (e *Engine) newState(task types.ArtifactTask, size int64, etag string, segmented bool) *types.DownloadState {
	state := &types.DownloadState{
		TaskID:   task.ID,
		URL:      task.URL,
		Size:     size,
		ETag:     etag,
		TempPath: tempPath(task.Destination),
	}

	if segmented && size >= e.cfg.SegmentThreshold && e.cfg.Segments > 1 {
		per := size / int64(e.cfg.Segments)
		var offset int64
		for i := 0; i < e.cfg.Segments; i++ {
			length := per
			if i == e.cfg.Segments-1 {
				length = size - offset
			}
			state.Segments = append(state.Segments, types.SegmentState{Offset: offset, Length: length})
			offset += length
		}
		return state
	}

	state.Segments = []types.SegmentState{{Offset: 0, Length: size}}
	return state
}

// downloadSegments fetches every incomplete segment, in parallel when there
// is more than one. The file handle is shared; each worker writes only its
// own byte range via WriteAt.
func (e *Engine) downloadSegments(ctx context.Context, f *os.File, task types.ArtifactTask, state *types.DownloadState, size int64) error {
	var stateMu sync.Mutex
	total := state.BytesDone()

	if len(state.Segments) == 1 {
		return e.downloadSegment(ctx, f, task, state, 0, &stateMu, &total, size)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(state.Segments))
	for i := range state.Segments {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := e.downloadSegment(ctx, f, task, state, idx, &stateMu, &total, size); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if goerrors.Is(err, context.Canceled) {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// downloadSegment streams one byte range into the shared temp file. Range
// headers are only sent when starting mid-file or when multiple segments
// exist, so the whole-file fallback is a plain GET.
func (e *Engine) downloadSegment(ctx context.Context, f *os.File, task types.ArtifactTask, state *types.DownloadState, idx int, stateMu *sync.Mutex, total *int64, size int64) error {
	stateMu.Lock()
	seg := state.Segments[idx]
	stateMu.Unlock()

	if seg.Length > 0 && seg.Done >= seg.Length {
		return nil
	}

	ranged := seg.Offset+seg.Done > 0 || len(state.Segments) > 1

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return terminalErr(lerrors.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	if ranged {
		if seg.Length > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", seg.Offset+seg.Done, seg.Offset+seg.Length-1))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", seg.Offset+seg.Done))
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Expected for ranged requests.
	case http.StatusOK:
		if ranged {
			if len(state.Segments) > 1 {
				// Server ignored the range; segmenting is off the table.
				return &attemptError{
					code:          lerrors.ErrRangeUnsupported,
					rangeFallback: true,
					err:           fmt.Errorf("GET %s: server ignored range request", task.URL),
				}
			}
			// Single segment: the server restarted us from zero, accept it.
			stateMu.Lock()
			atomic.AddInt64(total, -seg.Done)
			seg.Done = 0
			state.Segments[idx].Done = 0
			stateMu.Unlock()
		}
	default:
		return classifyStatus(resp.StatusCode, fmt.Errorf("GET %s: %s", task.URL, resp.Status))
	}

	var body io.Reader = resp.Body
	if seg.Length > 0 {
		body = io.LimitReader(resp.Body, seg.Length-seg.Done)
	}

	buf := make([]byte, readBufferSize)
	var sinceSave int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := f.WriteAt(buf[:n], seg.Offset+seg.Done); writeErr != nil {
				return terminalErr(lerrors.ErrFileWrite, writeErr)
			}
			seg.Done += int64(n)
			sinceSave += int64(n)
			done := atomic.AddInt64(total, int64(n))

			stateMu.Lock()
			state.Segments[idx].Done = seg.Done
			stateMu.Unlock()

			e.reporter.Update(task.ID, types.TaskDownloading, done, size)

			if sinceSave >= stateSaveStride {
				sinceSave = 0
				persistState(task.Destination, state, stateMu)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classifyTransport(readErr)
		}
	}

	if seg.Length > 0 && seg.Done < seg.Length {
		return transientErr(fmt.Errorf("GET %s: short read, %d of %d bytes", task.URL, seg.Done, seg.Length))
	}
	if seg.Length == 0 {
		// Unknown size stream: record what we actually got.
		stateMu.Lock()
		state.Segments[idx].Length = seg.Done
		if state.Size <= 0 {
			state.Size = seg.Done
		}
		stateMu.Unlock()
	}
	return nil
}

// persistState snapshots the shared state under its lock and writes the
// sidecar outside it.
func persistState(destination string, state *types.DownloadState, stateMu *sync.Mutex) {
	stateMu.Lock()
	snapshot := *state
	snapshot.Segments = append([]types.SegmentState(nil), state.Segments...)
	stateMu.Unlock()
	saveState(destination, &snapshot)
}
