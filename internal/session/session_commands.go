package session

import (
	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/registry"
	"github.com/alanbriolat/download-manager/util"
)

func (s *Session) Start(id download.ID) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return s.runner.Start(t)
}

func (s *Session) Pause(id download.ID) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return s.runner.Pause(t)
}

func (s *Session) Cancel(id download.ID) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return s.runner.Cancel(t)
}

func (s *Session) Rename(id download.ID, name string) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return s.change(t, func() error {
		t.SetName(name)
		return nil
	})
}

// SetSource points a task that isn't downloading at a different URL.
func (s *Session) SetSource(id download.ID, rawURL string) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	source, err := util.NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	return s.change(t, func() error {
		return t.SetSource(source)
	})
}

// Remove cancels the task if necessary and forgets about it. If deleteFile is set, its saved file is deleted too.
func (s *Session) Remove(id download.ID, deleteFile bool) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := s.runner.Cancel(t); err != nil {
		return err
	}
	return s.do(func() error {
		var result error
		if _, err := s.registry.Remove(id, deleteFile); err != nil {
			result = multierror.Append(result, err)
		}
		rec := t.Snapshot()
		if err := s.config.Database.DeleteTask(&rec); err != nil {
			result = multierror.Append(result, err)
		}
		delete(s.lastProgressEvent, id)
		// Every task after it moved up
		remaining := s.registry.List()
		if rec.Order > len(remaining) {
			rec.Order = len(remaining)
		}
		for _, other := range remaining[rec.Order:] {
			if err := s.persist(other.Snapshot()); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.log.Debugf("task removed: %v", t)
		s.events.Send(TaskRemoved{taskEvent{t}})
		return result
	})
}

// Move changes the position of a task in the list, such that the task at index from ends up at index to.
func (s *Session) Move(from, to int) error {
	return s.do(func() error {
		tasks := s.registry.List()
		if from < 0 || from >= len(tasks) {
			return registry.ErrIndexOutOfRange
		}
		t := tasks[from]
		if err := s.registry.Move(from, to); err != nil {
			return err
		}
		var result error
		for _, t := range s.registry.List() {
			if err := s.persist(t.Snapshot()); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.events.Send(TaskMoved{taskEvent{t}, from, to})
		return result
	})
}

// change applies a caller-initiated modification to a task, and persists and publishes it like the Runner's own.
func (s *Session) change(t *download.Task, f func() error) error {
	return s.do(func() error {
		before := t.Snapshot()
		if err := f(); err != nil {
			return err
		}
		after := t.Snapshot()
		if before.Equal(after) {
			return nil
		}
		if err := s.persist(after); err != nil {
			return err
		}
		s.events.Send(TaskUpdated{taskEvent{t}, before, after})
		return nil
	})
}
