package session

import (
	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/events"
)

type Event interface {
	// The Task this event relates to.
	Task() *download.Task
}

type taskEvent struct {
	task *download.Task
}

func (e taskEvent) Task() *download.Task {
	return e.task
}

type TaskAdded struct {
	taskEvent
}
type TaskRemoved struct {
	taskEvent
}
type TaskMoved struct {
	taskEvent
	From int
	To   int
}
type TaskUpdated struct {
	taskEvent
	Old download.Record
	New download.Record
}

// TaskNotification carries an events.Event emitted by a download: significant progress, completion or failure.
type TaskNotification struct {
	taskEvent
	events.Event
}
