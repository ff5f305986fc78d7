package session

import (
	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/util"
)

type AddTaskOptions struct {
	// Display name; defaults to the filename from the URL.
	Name string
	// Whether pausing keeps a checkpoint to resume from; defaults to true.
	Resumable       *bool
	AllowBackground bool
	// Start downloading as soon as the task is added.
	StartImmediately bool
}

// AddTask creates a task for rawURL at the end of the list. The URL is normalised first: "https://" is assumed if
// there is no scheme, and a trailing "/" is dropped.
func (s *Session) AddTask(rawURL string, opt *AddTaskOptions) (*download.Task, error) {
	if opt == nil {
		opt = &AddTaskOptions{}
	}
	source, err := util.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	resumable := true
	if opt.Resumable != nil {
		resumable = *opt.Resumable
	}
	t := download.NewTask(source, download.Options{
		Name:            opt.Name,
		Resumable:       resumable,
		AllowBackground: opt.AllowBackground,
	})
	err = s.do(func() error {
		if err := s.registry.Add(t); err != nil {
			return err
		}
		if err := s.persist(t.Snapshot()); err != nil {
			_, _ = s.registry.Remove(t.ID(), false)
			return err
		}
		s.log.Debugf("task added: %v", t)
		s.events.Send(TaskAdded{taskEvent{t}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opt.StartImmediately {
		if err := s.runner.Start(t); err != nil {
			return t, err
		}
	}
	return t, nil
}
