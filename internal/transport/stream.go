package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alanbriolat/download-manager/generic"
)

// A fetched is one response from a source, positioned at offset.
type fetched struct {
	body io.ReadCloser
	// Offset the body starts at; 0 if the source could not continue from the requested offset.
	offset int64
	// Total size of the resource, -1 if unknown.
	total     int64
	name      string
	validator string
}

// A source retrieves a resource from a byte offset. The validator from a previous fetch identifies the version of
// the resource already received; a source that sees a different version must restart from 0.
type source interface {
	fetch(ctx context.Context, offset int64, validator string) (*fetched, error)
}

// retryableError marks an error as a transient condition, e.g. a server error, that is worth reconnecting for.
type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	return retryableError{err}
}

func isRetryable(err error) bool {
	var re retryableError
	var ne net.Error
	switch {
	case errors.As(err, &re):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return true
	case errors.As(err, &ne):
		return ne.Timeout()
	default:
		return false
	}
}

type stream struct {
	url     string
	src     source
	opts    Options
	staging stagingArea
	handler Handler
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	checkpoint chan generic.Result[[]byte]
	aborted    bool
	finished   bool

	// Owned by the run goroutine.
	resume    *Checkpoint
	tempPath  string
	offset    int64
	total     int64
	name      string
	validator string
	waiting   bool
}

func startStream(ctx context.Context, url string, src source, opts Options, resume *Checkpoint, h Handler) *stream {
	opts = opts.withDefaults()
	s := &stream{
		url:     url,
		src:     src,
		opts:    opts,
		staging: newStagingArea(opts.TempDir),
		handler: h,
		limiter: opts.newLimiter(),
		log:     zap.S().Named("transport").With("url", url),
		resume:  resume,
		total:   -1,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.run()
	return s
}

func (s *stream) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.cancel()
}

func (s *stream) RequestCheckpoint() <-chan generic.Result[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		s.checkpoint = make(chan generic.Result[[]byte], 1)
		if s.aborted {
			s.checkpoint <- generic.Err[[]byte](ErrAborted)
		} else if s.finished {
			s.checkpoint <- generic.Err[[]byte](ErrStreamFinished)
		} else {
			s.cancel()
		}
	}
	return s.checkpoint
}

func (s *stream) run() {
	defer s.cancel()
	file, err := s.openStaging()
	if err != nil {
		s.finish(nil, err)
		return
	}
	err = s.transfer(file)
	if syncErr := file.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	s.finish(file, err)
}

func (s *stream) openStaging() (*os.File, error) {
	if cp := s.resume; cp != nil {
		file, offset, err := s.staging.reopen(cp.TempPath, cp.Offset)
		if err == nil {
			s.log.Debugw("resuming transfer", "temp_path", cp.TempPath, "offset", offset)
			s.tempPath, s.offset, s.validator, s.name = cp.TempPath, offset, cp.Validator, cp.Name
			return file, nil
		}
		s.log.Warnw("cannot reopen staging file, starting over", "temp_path", cp.TempPath, "error", err)
	}
	file, err := s.staging.create()
	if err != nil {
		return nil, err
	}
	s.tempPath = file.Name()
	return file, nil
}

// finish settles the outcome of the transfer once no more data will be written.
func (s *stream) finish(file *os.File, err error) {
	s.mu.Lock()
	s.finished = true
	aborted, checkpoint := s.aborted, s.checkpoint
	s.mu.Unlock()

	discard := func() {
		if file == nil {
			return
		}
		if rmErr := os.Remove(s.tempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.Warnw("failed to remove staging file", "temp_path", s.tempPath, "error", rmErr)
		}
	}

	switch {
	case aborted:
		discard()
		if checkpoint != nil {
			checkpoint <- generic.Err[[]byte](ErrAborted)
		}
	case checkpoint != nil:
		if err != nil && !errors.Is(err, context.Canceled) {
			discard()
			checkpoint <- generic.Err[[]byte](err)
			return
		}
		cp := Checkpoint{
			URL:       s.url,
			TempPath:  s.tempPath,
			Offset:    s.offset,
			Validator: s.validator,
			Name:      s.name,
		}
		data, encErr := cp.Encode()
		if encErr != nil {
			discard()
			checkpoint <- generic.Err[[]byte](encErr)
			return
		}
		s.log.Debugw("checkpoint created", "offset", s.offset)
		checkpoint <- generic.Ok(data)
	case err != nil:
		discard()
		s.handler.Error(err)
	default:
		s.handler.Complete(s.tempPath, s.name)
	}
}

// transfer copies the resource into file, reconnecting after transient failures.
func (s *stream) transfer(file *os.File) error {
	failures := 0
	for {
		received, err := s.attempt(file)
		if err == nil {
			return nil
		}
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		if received {
			failures = 0
		}
		if !isRetryable(err) || failures >= s.opts.RetryAttempts {
			return err
		}
		failures++
		s.log.Infow("connection lost, retrying", "attempt", failures, "error", err)
		if !s.waiting {
			s.waiting = true
			s.handler.Connectivity(ConnectivityWaiting)
		}
		if err := s.backoff(failures); err != nil {
			return err
		}
	}
}

func (s *stream) attempt(file *os.File) (received bool, err error) {
	ctx, wd := newWatchdog(s.ctx, s.opts.InactivityTimeout)
	defer wd.Stop()
	// Translates an error caused by the watchdog firing into a retryable one.
	interrupted := func(err error) error {
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		if errors.Is(context.Cause(ctx), os.ErrDeadlineExceeded) {
			return fmt.Errorf("no data received for %v: %w", s.opts.InactivityTimeout, os.ErrDeadlineExceeded)
		}
		return err
	}

	res, err := s.src.fetch(ctx, s.offset, s.validator)
	if err != nil {
		return false, interrupted(err)
	}
	defer res.body.Close()

	if res.offset != s.offset {
		s.log.Infow("source cannot continue, restarting transfer", "offset", s.offset)
		if err := file.Truncate(res.offset); err != nil {
			return false, err
		}
		s.offset = res.offset
	}
	if _, err := file.Seek(s.offset, io.SeekStart); err != nil {
		return false, err
	}
	s.total = res.total
	if res.name != "" {
		s.name = res.name
	}
	if res.validator != "" {
		s.validator = res.validator
	}
	if s.waiting {
		s.waiting = false
		s.handler.Connectivity(ConnectivityActive)
	}
	s.handler.Progress(0, s.offset, s.total)

	buf := make([]byte, s.opts.BufferSize)
	for {
		n, readErr := res.body.Read(buf)
		if n > 0 {
			wd.Kick()
			received = true
			if s.limiter != nil {
				if err := s.limiter.WaitN(ctx, n); err != nil {
					return received, interrupted(err)
				}
			}
			if _, err := file.Write(buf[:n]); err != nil {
				return received, fmt.Errorf("write staging file: %w", err)
			}
			s.offset += int64(n)
			s.handler.Progress(int64(n), s.offset, s.total)
		}
		if readErr == io.EOF {
			break
		} else if readErr != nil {
			return received, interrupted(readErr)
		}
	}
	if s.total >= 0 && s.offset < s.total {
		return received, io.ErrUnexpectedEOF
	}
	return received, nil
}

// backoff waits for an exponentially increasing duration with jitter.
func (s *stream) backoff(attempt int) error {
	backoff := s.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > s.opts.RetryMaxBackoff || backoff <= 0 {
		backoff = s.opts.RetryMaxBackoff
	}
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
