package download

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	lerrors "github.com/arthur-debert/lodestone/pkg/errors"
)

// attemptError classifies a failed attempt: transient errors are retried
// with backoff, terminal ones fail the task immediately. rangeFallback
// marks range-request rejections that warrant one whole-file retry.
type attemptError struct {
	code          lerrors.ErrorCode
	transient     bool
	rangeFallback bool
	err           error
}

func (a *attemptError) Error() string {
	return a.err.Error()
}

func (a *attemptError) Unwrap() error {
	return a.err
}

func transientErr(err error) *attemptError {
	return &attemptError{code: lerrors.ErrNetworkFailure, transient: true, err: err}
}

func terminalErr(code lerrors.ErrorCode, err error) *attemptError {
	return &attemptError{code: code, err: err}
}

// classifyStatus maps an unexpected HTTP status onto retry behavior:
// 5xx and 429 retry, 416 falls back to a whole-file request, the remaining
// 4xx are terminal for the task.
func classifyStatus(status int, err error) *attemptError {
	switch {
	case status == http.StatusRequestedRangeNotSatisfiable:
		return &attemptError{code: lerrors.ErrRangeUnsupported, rangeFallback: true, err: err}
	case status == http.StatusTooManyRequests, status >= 500:
		return transientErr(err)
	default:
		return terminalErr(lerrors.ErrNetworkFailure, err)
	}
}

// classifyTransport maps transport-level failures. Anything that can heal
// (timeouts, resets, temporary DNS trouble) is transient; context
// cancellation passes through untouched for the caller to recognize.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transientErr(err)
	}
	// Connection resets and friends arrive as plain *url.Error values;
	// treat unknown transport failures as transient and let the retry
	// budget bound them.
	return transientErr(err)
}

// backoff returns the jittered delay before the given retry (1-based).
func (e *Engine) backoff(retry int) time.Duration {
	delay := e.cfg.RetryBaseDelay << uint(retry-1)
	if delay > e.cfg.RetryMaxDelay {
		delay = e.cfg.RetryMaxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// sleep waits out a backoff delay unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
