package download

import (
	"github.com/alanbriolat/download-manager/internal/transport"
)

// streamHandler receives the callbacks for one run of a task, and forwards them to the coordinator. Once the run
// is superseded, paused or over, its callbacks are dropped.
type streamHandler struct {
	runner     *Runner
	task       *Task
	generation uint64
}

// current must only be called on the coordinator.
func (h *streamHandler) current() bool {
	return h.task.generation == h.generation && h.task.stream != nil
}

// dispatch runs f on the coordinator if this run is still current, returning false if it was not run.
func (h *streamHandler) dispatch(event string, f func()) bool {
	ran := false
	err := h.runner.config.Dispatcher.Do(func() {
		if !h.current() {
			h.runner.taskLog(h.task).Debugw("ignoring stale callback", "event", event, "generation", h.generation)
			return
		}
		ran = true
		f()
	})
	return err == nil && ran
}

func (h *streamHandler) Progress(delta, written, expected int64) {
	h.dispatch("progress", func() {
		h.runner.progress(h.task, written, expected)
	})
}

func (h *streamHandler) Connectivity(c transport.Connectivity) {
	h.dispatch("connectivity", func() {
		before, after := h.task.setConnectivity(c)
		h.runner.updated(h.task, before, after)
	})
}

// Complete reserves the destination on the coordinator, then moves the file there without holding it up.
func (h *streamHandler) Complete(tempPath string, suggestedName string) {
	log := h.runner.taskLog(h.task)
	var target string
	claimed := false
	h.dispatch("complete", func() {
		target, claimed = h.runner.reserve(h.task, suggestedName)
	})
	if !claimed {
		// Nobody else will ever claim the file.
		removeFile(log, tempPath)
		return
	}
	if target == "" {
		return
	}
	defer h.runner.placements.Done()
	err := h.runner.move(tempPath, target)
	if !h.dispatch("placed", func() { h.runner.placed(h.task, target, err) }) {
		log.Debugw("discarding download cancelled while it was being placed", "path", target)
		removeFile(log, target)
		removeFile(log, tempPath)
	}
}

func (h *streamHandler) Error(err error) {
	h.dispatch("error", func() {
		h.runner.fail(h.task, &TransportError{Err: err})
	})
}
