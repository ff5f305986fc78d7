// Package events defines the notifications a download emits for the outside world, and the sinks that deliver them.
package events

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/internal/pubsub"
)

type Kind uint8

const (
	// SignificantProgress is emitted each time progress advances by another notification step.
	SignificantProgress Kind = iota + 1
	Finished
	Failed
)

func (k Kind) String() string {
	switch k {
	case SignificantProgress:
		return "progress"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

type Event struct {
	Kind   Kind
	TaskID string
	Name   string
	// Progress in [0, 1].
	Progress float64
	// Final location of the file, for Finished.
	Path string
	// Cause of the failure, for Failed.
	Err error
}

// A Sink receives events. Notify is called from the download coordinator and must not block for long.
type Sink interface {
	Notify(e Event)
}

type SinkFunc func(e Event)

func (f SinkFunc) Notify(e Event) {
	f(e)
}

// Nil discards events.
var Nil Sink = SinkFunc(func(Event) {})

// Multi delivers each event to every sink in order.
type Multi []Sink

func (m Multi) Notify(e Event) {
	for _, s := range m {
		s.Notify(e)
	}
}

// Log writes events to a zap logger.
type Log struct {
	Logger *zap.SugaredLogger
}

func NewLog() Log {
	return Log{Logger: zap.S().Named("events")}
}

func (l Log) Notify(e Event) {
	log := l.Logger.With("task", e.TaskID, "name", e.Name)
	switch e.Kind {
	case SignificantProgress:
		log.Infow("download progress", "progress", fmt.Sprintf("%.0f%%", e.Progress*100))
	case Finished:
		log.Infow("download finished", "path", e.Path)
	case Failed:
		log.Warnw("download failed", "error", e.Err)
	default:
		log.Debugw("unknown event", "kind", e.Kind)
	}
}

// Publisher forwards events to a pubsub.Publisher, so that any number of subscribers can follow them.
type Publisher struct {
	pubsub.Sender[Event]
}

func NewPublisher(p pubsub.Sender[Event]) Publisher {
	return Publisher{p}
}

func (p Publisher) Notify(e Event) {
	p.Send(e)
}
