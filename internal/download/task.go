// Package download implements a single download task: its record, its state machine, and the Runner that drives
// it with a transport.
package download

import (
	"errors"
	"fmt"
	"time"

	sync_ "github.com/alanbriolat/download-manager/internal/sync"
	"github.com/alanbriolat/download-manager/internal/transport"
	"github.com/alanbriolat/download-manager/util"
)

const (
	// Smallest change in progress that is worth storing.
	progressStoreStep = 0.001
)

type Options struct {
	// Display name; defaults to the filename from the source URL.
	Name            string
	Resumable       bool
	AllowBackground bool
}

// Task is one download. Its record can be read from anywhere, but all state transitions are made by a Runner on
// its coordinator.
type Task struct {
	id     ID
	record *sync_.RWMutexed[Record]

	// Only accessed on the Runner's coordinator.
	generation   uint64
	stream       transport.Stream
	pausing      transport.Stream
	lastNotified float64
	// The transfer is complete and its file is being moved into place.
	placing bool
}

func NewTask(source string, opts Options) *Task {
	name := opts.Name
	if name == "" && source != "" {
		name, _ = util.FilenameFromURLString(source)
	}
	return newTask(Record{
		ID:              NewID(),
		Name:            name,
		Source:          source,
		Resumable:       opts.Resumable,
		AllowBackground: opts.AllowBackground,
		State:           StateNotStarted,
		AddedAt:         time.Now(),
	})
}

// Restore recreates a task from a persisted record. Any transfer the record claims to be in flight is gone, so
// the state is brought back to the nearest state where nothing is running.
func Restore(rec Record) *Task {
	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = NewID()
	}
	rec.State = rec.State.NonRunning(rec.Resumable, len(rec.Checkpoint) > 0)
	if rec.State != StatePaused {
		rec.Checkpoint = nil
		rec.Progress = 0
	}
	if rec.State == StateFailed && rec.Error != "" {
		rec.Cause = errors.New(rec.Error)
	} else if rec.State != StateFailed {
		rec.Error = ""
	}
	return newTask(rec)
}

func newTask(rec Record) *Task {
	return &Task{
		id:     rec.ID,
		record: sync_.NewRWMutexed(rec),
	}
}

func (t *Task) ID() ID {
	return t.id
}

func (t *Task) String() string {
	rec := t.record.Get()
	return fmt.Sprintf("Task{ID:%q, Source:%q, State:%q}", rec.ID, rec.Source, rec.State)
}

// Snapshot returns a copy of the task's record.
func (t *Task) Snapshot() Record {
	var rec Record
	_ = t.record.RLocked(func(r *Record) error {
		rec = r.Clone()
		return nil
	})
	return rec
}

func (t *Task) State() State {
	return t.Snapshot().State
}

func (t *Task) Progress() float64 {
	return t.Snapshot().Progress
}

// DisplayProgress is Progress, except that a finished task is always complete.
func (t *Task) DisplayProgress() float64 {
	rec := t.Snapshot()
	if rec.State == StateFinished {
		return 1
	}
	return rec.Progress
}

// LastError returns why the task failed, or nil if it is not Failed.
func (t *Task) LastError() error {
	rec := t.Snapshot()
	if rec.State != StateFailed {
		return nil
	}
	return rec.Cause
}

func (t *Task) Checkpoint() []byte {
	return t.Snapshot().Checkpoint
}

func (t *Task) SetName(name string) {
	t.mutate(func(r *Record) { r.Name = name })
}

// SetSource changes the URL to download from. A paused task loses its checkpoint, since it belongs to the old URL.
func (t *Task) SetSource(source string) error {
	return t.record.Locked(func(r *Record) error {
		if r.State.IsActive() {
			return ErrSourceLocked
		}
		if r.Source != source {
			r.Source = source
			r.Checkpoint = nil
		}
		return nil
	})
}

func (t *Task) SetOrder(order int) {
	t.mutate(func(r *Record) { r.Order = order })
}

// mutate applies f to the record, returning the record before and after.
func (t *Task) mutate(f func(r *Record)) (before, after Record) {
	_ = t.record.Locked(func(r *Record) error {
		before = r.Clone()
		f(r)
		after = r.Clone()
		return nil
	})
	return before, after
}

// beginRun moves the task to Downloading, returning the checkpoint to resume from if it was Paused with one.
func (t *Task) beginRun() (resume []byte, before, after Record) {
	t.generation++
	t.pausing = nil
	t.placing = false
	before, after = t.mutate(func(r *Record) {
		if r.State == StatePaused && len(r.Checkpoint) > 0 {
			resume = r.Checkpoint
		} else {
			r.Progress = 0
		}
		r.Checkpoint = nil
		r.State = StateDownloading
		r.Error = ""
		r.Cause = nil
	})
	t.lastNotified = after.Progress
	return resume, before, after
}

// restartFresh drops the progress of a run that was meant to resume but couldn't.
func (t *Task) restartFresh() (before, after Record) {
	t.lastNotified = 0
	return t.mutate(func(r *Record) { r.Progress = 0 })
}

// applyProgress records that written of expected bytes have been received. Progress never goes backwards within a
// run, and is left alone while the expected size is unknown. significant is true if progress has moved on by at
// least notifyStep since the last time it was.
func (t *Task) applyProgress(written, expected int64, notifyStep float64) (before, after Record, significant bool) {
	if expected <= 0 {
		rec := t.Snapshot()
		return rec, rec, false
	}
	p := float64(written) / float64(expected)
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	before, after = t.mutate(func(r *Record) {
		if !r.State.IsActive() || p <= r.Progress {
			return
		}
		if p-r.Progress >= progressStoreStep || p == 1 {
			r.Progress = p
		}
	})
	if after.Progress-t.lastNotified >= notifyStep {
		t.lastNotified = after.Progress
		significant = true
	}
	return before, after, significant
}

func (t *Task) setConnectivity(c transport.Connectivity) (before, after Record) {
	return t.mutate(func(r *Record) {
		switch {
		case c == transport.ConnectivityWaiting && r.State == StateDownloading:
			r.State = StateWaiting
		case c == transport.ConnectivityActive && r.State == StateWaiting:
			r.State = StateDownloading
		}
	})
}

// pause detaches the stream, which is now expected to produce a checkpoint for this generation.
func (t *Task) pause() (stream transport.Stream, before, after Record) {
	stream, t.stream, t.pausing = t.stream, nil, t.stream
	before, after = t.mutate(func(r *Record) {
		r.State = StatePaused
		r.Checkpoint = nil
	})
	return stream, before, after
}

// storeCheckpoint accepts a checkpoint only if it belongs to the current generation and the task is still
// waiting for it.
func (t *Task) storeCheckpoint(generation uint64, data []byte) (ok bool, before, after Record) {
	if generation != t.generation {
		rec := t.Snapshot()
		return false, rec, rec
	}
	t.pausing = nil
	before, after = t.mutate(func(r *Record) {
		if r.State == StatePaused && len(r.Checkpoint) == 0 {
			r.Checkpoint = data
			ok = true
		}
	})
	return ok, before, after
}

// cancel stops the task for good, invalidating anything still in flight for it. The streams that were in flight,
// and the checkpoint that is no longer needed, are returned for cleanup.
func (t *Task) cancel() (stream, pausing transport.Stream, checkpoint []byte, before, after Record) {
	t.generation++
	stream, pausing = t.stream, t.pausing
	t.stream, t.pausing = nil, nil
	t.placing = false
	before, after = t.mutate(func(r *Record) {
		checkpoint = r.Checkpoint
		r.State = StateCancelled
		r.Progress = 0
		r.Checkpoint = nil
		r.Error = ""
		r.Cause = nil
	})
	return stream, pausing, checkpoint, before, after
}

func (t *Task) finish(savedPath string) (before, after Record) {
	t.stream = nil
	t.placing = false
	return t.mutate(func(r *Record) {
		r.State = StateFinished
		r.SavedPath = savedPath
		r.Progress = 0
		r.Checkpoint = nil
		r.Error = ""
		r.Cause = nil
	})
}

// setError is the only way a task becomes Failed.
func (t *Task) setError(err error) (before, after Record) {
	t.stream = nil
	t.placing = false
	return t.mutate(func(r *Record) {
		r.State = StateFailed
		r.Progress = 0
		r.Checkpoint = nil
		r.Error = err.Error()
		r.Cause = err
	})
}
