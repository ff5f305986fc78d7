// Package dispatch provides the single execution context that all task state changes are funnelled through.
//
// Transport callbacks arrive on arbitrary goroutines; the download runner hands every mutation to a Dispatcher so
// that at most one of them runs at a time, in the order they were submitted.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/alanbriolat/download-manager/generic"
	"github.com/alanbriolat/download-manager/internal/lpc"
)

var (
	ErrClosed = errors.New("dispatcher closed")
)

type Dispatcher interface {
	// Do runs f in the dispatcher's context and waits for it to return. Calling Do from inside f deadlocks.
	Do(f func()) error
	// Close stops accepting work, waiting for anything already running to finish. Idempotent.
	Close()
}

type command = *lpc.Command[func(), generic.Void]

// Loop runs submitted functions one at a time on its own goroutine.
type Loop struct {
	ctx      context.Context
	cancel   context.CancelFunc
	commands chan command
	done     chan struct{}
}

func NewLoop() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		ctx:      ctx,
		cancel:   cancel,
		commands: make(chan command),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case c := <-l.commands:
			c.Arg()()
			_ = c.Respond(generic.NewVoid())
		}
	}
}

func (l *Loop) Do(f func()) error {
	_, err := lpc.Call[func(), generic.Void](l.ctx, l.commands, f)
	if errors.Is(err, context.Canceled) {
		return ErrClosed
	}
	return err
}

func (l *Loop) Close() {
	l.cancel()
	<-l.done
}

// Inline runs submitted functions on the calling goroutine, serialised by a mutex. Useful in tests, where the
// goroutine driving a fake transport should observe each state change as soon as its callback returns.
type Inline struct {
	mu     sync.Mutex
	closed bool
}

func NewInline() *Inline {
	return &Inline{}
}

func (d *Inline) Do(f func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	f()
	return nil
}

func (d *Inline) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}
