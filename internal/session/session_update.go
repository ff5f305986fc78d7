package session

import (
	"errors"
	"time"

	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/events"
	"github.com/alanbriolat/download-manager/internal/registry"
)

func (s *Session) persist(rec download.Record) error {
	if err := s.config.Database.WriteTask(&rec); err != nil {
		s.log.Errorw("failed to save task", "task_id", rec.ID, "error", err)
		return err
	}
	return nil
}

// onUpdate is called by the Runner, on the coordinator, for every change it makes to a task.
func (s *Session) onUpdate(t *download.Task, before, after download.Record) {
	if _, err := s.registry.Get(t.ID()); errors.Is(err, registry.ErrTaskNotFound) {
		return
	}
	if before.OnlyProgressDiffers(after) {
		now := time.Now()
		if last, ok := s.lastProgressEvent[t.ID()]; ok && now.Sub(last) < s.config.ProgressUpdateInterval {
			return
		}
		s.lastProgressEvent[t.ID()] = now
	} else {
		delete(s.lastProgressEvent, t.ID())
		_ = s.persist(after)
	}
	s.events.Send(TaskUpdated{taskEvent{t}, before, after})
}

// notify republishes download notifications as session events.
func (s *Session) notify(e events.Event) {
	t, err := s.registry.Get(download.ID(e.TaskID))
	if err != nil {
		return
	}
	s.events.Send(TaskNotification{taskEvent{t}, e})
}
