package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/async"
	"github.com/alanbriolat/download-manager/generic"
	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/events"
	"github.com/alanbriolat/download-manager/internal/session"
)

// watch calls begin and then shows progress for tasks until none of them is running. If ctx is cancelled first,
// the tasks are paused instead. The result includes the error of every task that failed.
//
// Session calls happen off the receiving goroutine, because the session waits for subscribers to take its events.
func watch(ctx context.Context, s *session.Session, tasks []*download.Task, begin func() error) error {
	logger := zap.S().Named("cli")
	sub, err := s.Subscribe()
	if err != nil {
		return err
	}
	defer sub.Close()

	watched := generic.NewSet[download.ID]()
	bars := make(map[download.ID]*progressbar.ProgressBar, len(tasks))
	for _, t := range tasks {
		watched.Add(t.ID())
		bars[t.ID()] = progressbar.Default(100, t.Snapshot().Name)
	}

	started := async.Run(begin)
	var paused <-chan error
	begun, interrupted := false, false
	done := ctx.Done()
	pause := func() {
		logger.Info("interrupted, pausing downloads")
		paused = async.Run(func() error { return pauseAll(s, tasks) })
	}

	for !begun || anyActive(tasks) {
		select {
		case err := <-started:
			started = nil
			begun = true
			if err != nil {
				return err
			}
			if interrupted {
				pause()
			}
		case <-done:
			done = nil
			interrupted = true
			if begun {
				pause()
			}
		case err := <-paused:
			paused = nil
			if err != nil {
				logger.Errorf("failed to pause: %v", err)
			}
		case event, ok := <-sub.Receive():
			if !ok {
				return errors.New("session closed")
			}
			if t := event.Task(); t != nil && watched.Contains(t.ID()) {
				handleEvent(logger, event, bars[t.ID()])
			}
		}
	}

	var result error
	for _, t := range tasks {
		bar := bars[t.ID()]
		switch t.State() {
		case download.StateFinished:
			generic.Unwrap_(bar.Finish())
		case download.StatePaused:
			logger.Infof("%v paused, resume with: start %v", t, t.ID())
		case download.StateFailed:
			result = multierror.Append(result, fmt.Errorf("%v: %w", t, t.LastError()))
		}
	}
	return result
}

func handleEvent(logger *zap.SugaredLogger, event session.Event, bar *progressbar.ProgressBar) {
	switch e := event.(type) {
	case session.TaskUpdated:
		changes, err := diff.Diff(e.Old, e.New)
		if err != nil {
			logger.Errorf("failed to diff old and new task state: %v", err)
		} else {
			for _, change := range changes {
				logger.Debugf("%v: %v: %#v -> %#v", e.Task().ID(), change.Path, change.From, change.To)
			}
		}
		if e.Old.Name != e.New.Name {
			bar.Describe(e.New.Name)
		}
		generic.Unwrap_(bar.Set(int(e.Task().DisplayProgress() * 100)))
	case session.TaskNotification:
		switch e.Kind {
		case events.Finished:
			logger.Infof("%v saved to %v", e.Task(), e.Path)
		case events.Failed:
			logger.Errorf("%v failed: %v", e.Task(), e.Err)
		}
	}
}

func anyActive(tasks []*download.Task) bool {
	for _, t := range tasks {
		if t.State().IsActive() {
			return true
		}
	}
	return false
}

func pauseAll(s *session.Session, tasks []*download.Task) error {
	var result error
	for _, t := range tasks {
		if t.State().IsActive() {
			if err := s.Pause(t.ID()); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result
}
