package download

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/internal/dispatch"
	"github.com/alanbriolat/download-manager/internal/events"
	"github.com/alanbriolat/download-manager/internal/transport"
)

type Config struct {
	// Directory finished downloads are placed in, created if necessary.
	SaveDir   string
	Transport transport.Transport
	Sink      events.Sink
	// The coordinator every task mutation happens on. The Runner closes it when it is closed.
	Dispatcher dispatch.Dispatcher
	// Called on the coordinator after each change to a task record made by the Runner. It must not call back into
	// the Runner.
	OnUpdate func(t *Task, before, after Record)
	// Progress change between SignificantProgress events.
	NotifyStep float64
}

var DefaultConfig = Config{
	SaveDir:    ".",
	NotifyStep: 0.10,
}

// Runner drives tasks with a Transport. All task state changes happen on its Dispatcher, which serialises the
// Runner's own operations with the callbacks from every transfer.
type Runner struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.SugaredLogger

	// Only accessed on the coordinator.
	active  map[ID]*Task
	closing bool

	// Outstanding checkpoint requests and file placements. Only added to on the coordinator before closing.
	checkpoints sync.WaitGroup
	placements  sync.WaitGroup

	move func(src, dst string) error
}

func NewRunner(config Config) *Runner {
	if config.SaveDir == "" {
		config.SaveDir = DefaultConfig.SaveDir
	}
	if config.Transport == nil {
		config.Transport = transport.NewDefaultRegistry(transport.DefaultOptions())
	}
	if config.Sink == nil {
		config.Sink = events.Nil
	}
	if config.Dispatcher == nil {
		config.Dispatcher = dispatch.NewLoop()
	}
	if config.NotifyStep <= 0 {
		config.NotifyStep = DefaultConfig.NotifyStep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		log:    zap.S().Named("runner"),
		active: make(map[ID]*Task),
		move:   moveFile,
	}
}

func (r *Runner) taskLog(t *Task) *zap.SugaredLogger {
	return r.log.With("task_id", t.id)
}

// do runs f on the coordinator, returning f's error or the dispatcher's.
func (r *Runner) do(f func() error) error {
	var err error
	if doErr := r.config.Dispatcher.Do(func() { err = f() }); doErr != nil {
		return doErr
	}
	return err
}

// Start begins (or resumes) downloading t. A task without a source is left alone, with a warning logged.
// Transfer failures are not returned: they are recorded on the task, which becomes Failed.
func (r *Runner) Start(t *Task) error {
	return r.do(func() error {
		if r.closing {
			return dispatch.ErrClosed
		}
		return r.start(t)
	})
}

// Pause stops an active task, keeping a checkpoint to resume from later. A task that isn't resumable is cancelled
// instead.
func (r *Runner) Pause(t *Task) error {
	return r.do(func() error {
		if r.closing {
			return dispatch.ErrClosed
		}
		r.pause(t)
		return nil
	})
}

// Cancel stops a task for good, discarding its progress.
func (r *Runner) Cancel(t *Task) error {
	return r.do(func() error {
		r.cancelTask(t)
		return nil
	})
}

// Close pauses every active task and waits (until ctx is done) for their checkpoints and for finished downloads
// to be placed, then stops the coordinator.
func (r *Runner) Close(ctx context.Context) error {
	err := r.do(func() error {
		r.closing = true
		for _, t := range r.active {
			r.pause(t)
		}
		return nil
	})
	if errors.Is(err, dispatch.ErrClosed) {
		return nil
	}
	settled := make(chan struct{})
	go func() {
		r.checkpoints.Wait()
		r.placements.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-ctx.Done():
		err = ctx.Err()
	}
	r.cancel()
	r.config.Dispatcher.Close()
	return err
}

func (r *Runner) start(t *Task) error {
	log := r.taskLog(t)
	rec := t.Snapshot()
	if rec.Source == "" {
		log.Warnw("not starting download", "error", ErrSourceMissing)
		return nil
	}
	if t.stream != nil || rec.State.IsActive() {
		return ErrAlreadyRunning
	}
	resume, before, after := t.beginRun()
	r.updated(t, before, after)
	log.Debugw("starting download", "resume", len(resume) > 0)

	h := &streamHandler{runner: r, task: t, generation: t.generation}
	stream, err := r.config.Transport.Open(r.ctx, transport.Request{URL: rec.Source, Checkpoint: resume}, h)
	if err != nil && len(resume) > 0 {
		log.Warnw("cannot resume download, starting over", "error", err)
		r.discard(t, resume)
		before, after = t.restartFresh()
		r.updated(t, before, after)
		stream, err = r.config.Transport.Open(r.ctx, transport.Request{URL: rec.Source}, h)
	}
	if err != nil {
		r.fail(t, &TransportError{Err: err})
		return nil
	}
	t.stream = stream
	r.active[t.id] = t
	return nil
}

func (r *Runner) pause(t *Task) {
	log := r.taskLog(t)
	rec := t.Snapshot()
	if t.stream == nil || !rec.State.IsActive() {
		log.Debugw("ignoring pause", "state", rec.State)
		return
	}
	if t.placing {
		log.Debug("ignoring pause, download already complete")
		return
	}
	if !rec.Resumable {
		log.Debug("download not resumable, cancelling instead of pausing")
		r.cancelTask(t)
		return
	}
	delete(r.active, t.id)
	stream, before, after := t.pause()
	r.updated(t, before, after)
	log.Debug("pausing download")

	generation := t.generation
	result := stream.RequestCheckpoint()
	r.checkpoints.Add(1)
	go func() {
		defer r.checkpoints.Done()
		select {
		case res := <-result:
			data, err := res.Parts()
			if doErr := r.config.Dispatcher.Do(func() { r.checkpointSettled(t, generation, data, err) }); doErr != nil {
				log.Warnw("checkpoint arrived after shutdown", "error", doErr)
			}
		case <-r.ctx.Done():
		}
	}()
}

func (r *Runner) checkpointSettled(t *Task, generation uint64, data []byte, err error) {
	log := r.taskLog(t)
	if err != nil {
		if generation == t.generation {
			t.pausing = nil
			log.Warnw("failed to create checkpoint, download will start over", "error", err)
		}
		return
	}
	ok, before, after := t.storeCheckpoint(generation, data)
	if !ok {
		log.Debug("discarding checkpoint for superseded run")
		r.discard(t, data)
		return
	}
	r.updated(t, before, after)
	log.Debugw("checkpoint stored", "size", len(data))
}

func (r *Runner) cancelTask(t *Task) {
	rec := t.Snapshot()
	if !rec.State.IsActive() && rec.State != StatePaused {
		r.taskLog(t).Debugw("ignoring cancel", "state", rec.State)
		return
	}
	delete(r.active, t.id)
	stream, pausing, checkpoint, before, after := t.cancel()
	if stream != nil {
		stream.Abort()
	}
	if pausing != nil {
		pausing.Abort()
	}
	r.discard(t, checkpoint)
	r.updated(t, before, after)
	r.taskLog(t).Debug("download cancelled")
}

// reserve claims a destination in the save directory for a finished transfer, so that the file can be moved there
// off the coordinator. claimed is false if the runner won't take the file; an empty target means the task failed.
func (r *Runner) reserve(t *Task, suggestedName string) (target string, claimed bool) {
	if r.closing {
		return "", false
	}
	delete(r.active, t.id)
	t.placing = true
	path, err := r.reservePath(destinationName(t.Snapshot(), suggestedName))
	if err != nil {
		r.taskLog(t).Errorw("failed to reserve destination", "error", err)
		r.fail(t, err)
		return "", true
	}
	r.placements.Add(1)
	return path, true
}

// placed settles a task once its file has been moved to target, or failed to be.
func (r *Runner) placed(t *Task, target string, err error) {
	log := r.taskLog(t)
	if err != nil {
		removeFile(log, target)
		log.Errorw("failed to place download", "path", target, "error", err)
		r.fail(t, &FilesystemError{Op: "move", Path: target, Err: err})
		return
	}
	name := t.Snapshot().Name
	before, after := t.finish(target)
	r.updated(t, before, after)
	log.Infow("download finished", "path", target)
	r.config.Sink.Notify(events.Event{Kind: events.Finished, TaskID: string(t.id), Name: name, Progress: 1, Path: target})
}

func (r *Runner) fail(t *Task, err error) {
	delete(r.active, t.id)
	before, after := t.setError(err)
	r.updated(t, before, after)
	r.taskLog(t).Errorw("download failed", "error", err)
	r.config.Sink.Notify(events.Event{Kind: events.Failed, TaskID: string(t.id), Name: after.Name, Err: err})
}

func (r *Runner) progress(t *Task, written, expected int64) {
	before, after, significant := t.applyProgress(written, expected, r.config.NotifyStep)
	r.updated(t, before, after)
	if significant {
		r.config.Sink.Notify(events.Event{Kind: events.SignificantProgress, TaskID: string(t.id), Name: after.Name, Progress: after.Progress})
	}
}

func (r *Runner) discard(t *Task, checkpoint []byte) {
	if len(checkpoint) == 0 {
		return
	}
	if d, ok := r.config.Transport.(transport.Discarder); ok {
		if err := d.Discard(checkpoint); err != nil {
			r.taskLog(t).Debugw("failed to discard checkpoint", "error", err)
		}
	}
}

func (r *Runner) updated(t *Task, before, after Record) {
	if before.State != after.State {
		r.taskLog(t).Debugw("state changed", "from", before.State, "to", after.State)
	}
	if r.config.OnUpdate != nil && !before.Equal(after) {
		r.config.OnUpdate(t, before, after)
	}
}
