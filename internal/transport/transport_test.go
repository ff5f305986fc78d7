package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type outcome struct {
	tempPath string
	name     string
	err      error
}

// recorder is a Handler that keeps everything it is told.
type recorder struct {
	mu           sync.Mutex
	written      int64
	expected     int64
	connectivity []Connectivity
	progress     chan int64
	done         chan outcome
}

func newRecorder() *recorder {
	return &recorder{
		expected: -1,
		progress: make(chan int64, 1024),
		done:     make(chan outcome, 2),
	}
}

func (r *recorder) Progress(delta, written, expected int64) {
	r.mu.Lock()
	r.written, r.expected = written, expected
	r.mu.Unlock()
	select {
	case r.progress <- written:
	default:
	}
}

func (r *recorder) Connectivity(c Connectivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivity = append(r.connectivity, c)
}

func (r *recorder) Complete(tempPath string, suggestedName string) {
	r.done <- outcome{tempPath: tempPath, name: suggestedName}
}

func (r *recorder) Error(err error) {
	r.done <- outcome{err: err}
}

func (r *recorder) Connectivities() []Connectivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Connectivity(nil), r.connectivity...)
}

// waitWritten blocks until at least n bytes have been reported.
func (r *recorder) waitWritten(t *testing.T, n int64) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case written := <-r.progress:
			if written >= n {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %d bytes", n)
		}
	}
}

func (r *recorder) wait(t *testing.T) outcome {
	select {
	case o := <-r.done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transfer to finish")
		return outcome{}
	}
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.TempDir = t.TempDir()
	opts.RetryBackoff = time.Millisecond
	opts.RetryMaxBackoff = 5 * time.Millisecond
	opts.BufferSize = 1024
	return opts
}

func openStream(t *testing.T, tr Transport, req Request, h Handler) Stream {
	s, err := tr.Open(context.Background(), req, h)
	require.NoError(t, err)
	t.Cleanup(s.Abort)
	return s
}
