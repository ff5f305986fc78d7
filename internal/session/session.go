package session

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/internal/dispatch"
	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/events"
	"github.com/alanbriolat/download-manager/internal/pubsub"
	"github.com/alanbriolat/download-manager/internal/registry"
	"github.com/alanbriolat/download-manager/internal/transport"
)

type Config struct {
	SaveDir   string
	Database  Database
	Transport transport.Transport
	// Receives download notifications in addition to session subscribers.
	Sink events.Sink
	// Minimum interval between TaskUpdated events for a task from progress updates alone.
	ProgressUpdateInterval time.Duration
	// Coordinator for all task changes; a new dispatch.Loop if not set.
	Dispatcher dispatch.Dispatcher
	// Progress change between SignificantProgress notifications.
	NotifyStep float64
}

var DefaultConfig = Config{
	SaveDir:                ".",
	Database:               NilDatabase{},
	ProgressUpdateInterval: 500 * time.Millisecond,
	NotifyStep:             0.10,
}

// Session is the host for a set of downloads: it owns the task registry, drives tasks with a download.Runner,
// persists their records, and publishes what happens to them.
type Session struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.SugaredLogger

	registry *registry.Registry
	runner   *download.Runner
	events   pubsub.Publisher[Event]

	// Only accessed on the coordinator.
	lastProgressEvent map[download.ID]time.Time
}

// New creates a Session, loading the tasks already in the database. Tasks that were running when the database was
// last written come back paused (if they can be resumed) or not started.
func New(ctx context.Context, config Config) (*Session, error) {
	if config.Database == nil {
		config.Database = NilDatabase{}
	}
	if config.Dispatcher == nil {
		config.Dispatcher = dispatch.NewLoop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:            config,
		ctx:               ctx,
		cancel:            cancel,
		log:               zap.S().Named("session"),
		registry:          registry.New(),
		events:            pubsub.NewPublisher[Event](),
		lastProgressEvent: make(map[download.ID]time.Time),
	}
	sinks := events.Multi{events.SinkFunc(s.notify), events.NewLog()}
	if config.Sink != nil {
		sinks = append(sinks, config.Sink)
	}
	s.runner = download.NewRunner(download.Config{
		SaveDir:    config.SaveDir,
		Transport:  config.Transport,
		Sink:       sinks,
		Dispatcher: config.Dispatcher,
		OnUpdate:   s.onUpdate,
		NotifyStep: config.NotifyStep,
	})
	if err := s.load(); err != nil {
		cancel()
		_ = s.runner.Close(ctx)
		s.events.Close()
		return nil, err
	}
	return s, nil
}

// do runs f on the coordinator, so that the changes it persists and publishes are ordered with the Runner's.
func (s *Session) do(f func() error) error {
	var err error
	if doErr := s.config.Dispatcher.Do(func() { err = f() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) load() error {
	records, err := s.config.Database.ListTasks()
	if err != nil {
		return err
	}
	tasks := make([]*download.Task, 0, len(records))
	for _, rec := range records {
		t := download.Restore(rec)
		tasks = append(tasks, t)
	}
	if err := s.registry.Load(tasks); err != nil {
		return err
	}
	// Write back whatever restoring (or renumbering) changed
	for i, t := range tasks {
		if restored := t.Snapshot(); !restored.Equal(records[i]) {
			if err := s.config.Database.WriteTask(&restored); err != nil {
				return err
			}
		}
	}
	s.log.Debugw("loaded tasks", "count", len(tasks))
	return nil
}

// Subscribe to all session events. Subscribers must keep receiving until they Close: publishing waits for them.
func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// SubscribeTask subscribes to the events of a single task.
func (s *Session) SubscribeTask(id download.ID) (pubsub.ReceiverCloser[Event], error) {
	return s.events.SubscribeFiltered(func(e Event) bool {
		return e.Task() != nil && e.Task().ID() == id
	})
}

// List returns all tasks in display order.
func (s *Session) List() []*download.Task {
	return s.registry.List()
}

func (s *Session) Get(id download.ID) (*download.Task, error) {
	return s.registry.Get(id)
}

// Close pauses running downloads, waiting until ctx is done for their checkpoints to be saved, and then shuts
// down the session.
func (s *Session) Close(ctx context.Context) error {
	var result error
	if err := s.runner.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	s.cancel()
	s.events.Close()
	return result
}
