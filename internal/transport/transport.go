// Package transport performs the actual byte transfers for downloads: a streaming fetch into a staging file which
// reports progress and connectivity, and which can be interrupted to produce a resumable checkpoint.
package transport

import (
	"context"
	"errors"

	"github.com/alanbriolat/download-manager/generic"
)

var (
	ErrAborted           = errors.New("transfer aborted")
	ErrStreamFinished    = errors.New("transfer already finished")
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	ErrNoTransport       = errors.New("no transport for URL")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

type Connectivity uint8

const (
	ConnectivityActive Connectivity = iota
	ConnectivityWaiting
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityActive:
		return "active"
	case ConnectivityWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Request describes a transfer to start. If Checkpoint is non-empty the transfer continues from where the
// checkpointed transfer stopped.
type Request struct {
	URL        string
	Checkpoint []byte
}

// Handler receives the events of one Stream. Calls are made sequentially from a goroutine owned by the Stream, and
// at most one of Complete or Error is called, and only if the stream is neither aborted nor checkpointed.
type Handler interface {
	// Progress reports that delta more bytes arrived, written in total so far, out of expected (-1 if unknown).
	Progress(delta, written, expected int64)
	// Connectivity reports the transfer stalling on (or recovering from) a lost connection.
	Connectivity(c Connectivity)
	// Complete hands over the finished staging file; the receiver becomes responsible for it.
	Complete(tempPath string, suggestedName string)
	// Error reports that the transfer failed and its staging file was discarded.
	Error(err error)
}

type Stream interface {
	// Abort stops the transfer as soon as possible, discarding its data and any pending checkpoint request.
	Abort()
	// RequestCheckpoint stops the transfer, keeping its data. The returned channel receives exactly one result: the
	// checkpoint blob, or an error if one could not be produced.
	RequestCheckpoint() <-chan generic.Result[[]byte]
}

type Transport interface {
	// Open starts a transfer in the background and returns without waiting for any network activity. An error is
	// only returned for requests that can never succeed, e.g. an unsupported URL or invalid checkpoint.
	Open(ctx context.Context, req Request, h Handler) (Stream, error)
}

// HandlerFuncs adapts a set of functions to a Handler; nil functions are skipped.
type HandlerFuncs struct {
	OnProgress     func(delta, written, expected int64)
	OnConnectivity func(c Connectivity)
	OnComplete     func(tempPath string, suggestedName string)
	OnError        func(err error)
}

func (h HandlerFuncs) Progress(delta, written, expected int64) {
	if h.OnProgress != nil {
		h.OnProgress(delta, written, expected)
	}
}

func (h HandlerFuncs) Connectivity(c Connectivity) {
	if h.OnConnectivity != nil {
		h.OnConnectivity(c)
	}
}

func (h HandlerFuncs) Complete(tempPath string, suggestedName string) {
	if h.OnComplete != nil {
		h.OnComplete(tempPath, suggestedName)
	}
}

func (h HandlerFuncs) Error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}
