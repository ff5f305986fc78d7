// Package lpc stands for "Local Procedure Call". It's a typed RPC-like mechanism implemented over Go channels, intended
// for communication with long-running goroutines.
package lpc

import (
	"context"
	"errors"

	"github.com/alanbriolat/download-manager/generic"
	sync_ "github.com/alanbriolat/download-manager/internal/sync"
)

var (
	ErrClosed     = errors.New("command response already sent")
	ErrNoResponse = errors.New("no response")
)

type Command[Arg any, Response any] struct {
	initialized bool
	arg         Arg
	response    generic.Result[Response]
	done        sync_.Event
}

func (*Command[Arg, Response]) New(arg Arg) *Command[Arg, Response] {
	return &Command[Arg, Response]{
		initialized: true,
		arg:         arg,
		response:    generic.Err[Response](ErrNoResponse), // Default error if closed with no response
	}
}

func (c *Command[Arg, Response]) Arg() Arg {
	return c.arg
}

func (c *Command[Arg, Response]) Respond(response Response) error {
	c.mustBeInitialized("Respond")
	if c.done.IsSet() {
		return ErrClosed
	}
	c.response = generic.Ok[Response](response)
	c.Close()
	return nil
}

func (c *Command[Arg, Response]) RespondError(err error) error {
	c.mustBeInitialized("RespondError")
	if c.done.IsSet() {
		return ErrClosed
	}
	c.response = generic.Err[Response](err)
	c.Close()
	return nil
}

// Done returns a channel that is closed once the command has a response (or was closed without one).
func (c *Command[Arg, Response]) Done() <-chan struct{} {
	c.mustBeInitialized("Done")
	return c.done.Wait()
}

func (c *Command[Arg, Response]) Wait() (Response, error) {
	<-c.Done()
	return c.response.Parts()
}

func (c *Command[Arg, Response]) Close() {
	c.mustBeInitialized("Close")
	c.done.Set()
}

func (c *Command[Arg, Response]) mustBeInitialized(method string) {
	if c == nil || !c.initialized {
		panic("attempted to call ." + method + "() on uninitialized Command, must use .New() first")
	}
}

// Call sends a new command for arg to the goroutine serving commands, and waits for its response. If ctx is done
// before the command is accepted, ctx.Err() is returned; once accepted, Call always waits for the response.
func Call[Arg any, Response any](ctx context.Context, commands chan<- *Command[Arg, Response], arg Arg) (Response, error) {
	c := (*Command[Arg, Response]).New(nil, arg)
	select {
	case commands <- c:
		return c.Wait()
	case <-ctx.Done():
		var zero Response
		return zero, ctx.Err()
	}
}
