// Package transporttest provides a scripted Transport, so that code driving transfers can be tested by playing out
// exactly the sequence of transfer events a test needs.
package transporttest

import (
	"context"
	"sync"

	"github.com/alanbriolat/download-manager/generic"
	"github.com/alanbriolat/download-manager/internal/transport"
)

// Fake records every Open call as a FakeStream. If OpenErr is set, Open fails with it instead.
type Fake struct {
	mu      sync.Mutex
	streams []*FakeStream
	OpenErr error
	// OpenFunc, if set, decides the error for each Open call, overriding OpenErr.
	OpenFunc  func(req transport.Request) error
	discarded [][]byte
}

// Discard records the checkpoint, see Discarded.
func (f *Fake) Discard(checkpoint []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, checkpoint)
	return nil
}

func (f *Fake) Discarded() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.discarded...)
}

func (f *Fake) Open(ctx context.Context, req transport.Request, h transport.Handler) (transport.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.OpenErr
	if f.OpenFunc != nil {
		err = f.OpenFunc(req)
	}
	if err != nil {
		return nil, err
	}
	s := &FakeStream{Request: req, handler: h}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *Fake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *Fake) Streams() []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStream(nil), f.streams...)
}

// Last returns the most recently opened stream, or nil.
func (f *Fake) Last() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// FakeStream is the Stream side of a Fake transfer. Its driver methods invoke the Handler synchronously, so the
// effects of each event can be asserted as soon as the call returns (given a synchronous receiver).
type FakeStream struct {
	Request transport.Request
	handler transport.Handler

	mu         sync.Mutex
	aborted    bool
	written    int64
	checkpoint chan generic.Result[[]byte]
	delivered  bool
}

func (s *FakeStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	if s.checkpoint != nil && !s.delivered {
		s.delivered = true
		s.checkpoint <- generic.Err[[]byte](transport.ErrAborted)
	}
}

func (s *FakeStream) RequestCheckpoint() <-chan generic.Result[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		s.checkpoint = make(chan generic.Result[[]byte], 1)
		if s.aborted {
			s.delivered = true
			s.checkpoint <- generic.Err[[]byte](transport.ErrAborted)
		}
	}
	return s.checkpoint
}

func (s *FakeStream) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *FakeStream) CheckpointRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint != nil
}

// Progress reports that written of expected bytes have been received.
func (s *FakeStream) Progress(written, expected int64) {
	s.mu.Lock()
	delta := written - s.written
	s.written = written
	s.mu.Unlock()
	s.handler.Progress(delta, written, expected)
}

func (s *FakeStream) Waiting() {
	s.handler.Connectivity(transport.ConnectivityWaiting)
}

func (s *FakeStream) Active() {
	s.handler.Connectivity(transport.ConnectivityActive)
}

func (s *FakeStream) Complete(tempPath string, suggestedName string) {
	s.handler.Complete(tempPath, suggestedName)
}

func (s *FakeStream) Fail(err error) {
	s.handler.Error(err)
}

// ProvideCheckpoint answers a pending RequestCheckpoint with data. It reports false if no request is pending.
func (s *FakeStream) ProvideCheckpoint(data []byte) bool {
	return s.deliver(generic.Ok(data))
}

// FailCheckpoint answers a pending RequestCheckpoint with err. It reports false if no request is pending.
func (s *FakeStream) FailCheckpoint(err error) bool {
	return s.deliver(generic.Err[[]byte](err))
}

func (s *FakeStream) deliver(r generic.Result[[]byte]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil || s.delivered {
		return false
	}
	s.delivered = true
	s.checkpoint <- r
	return true
}
