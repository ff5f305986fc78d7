// Package registry keeps the ordered collection of download tasks.
package registry

import (
	"errors"
	"os"
	"sort"
	"sync"

	"github.com/alanbriolat/download-manager/internal/download"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrDuplicateTask   = errors.New("duplicate task ID")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Registry is an ordered set of tasks keyed by ID. Each task's Order is kept equal to its position in the list.
// The registry never starts or stops transfers itself.
type Registry struct {
	mu    sync.RWMutex
	tasks []*download.Task
	byID  map[download.ID]*download.Task
}

func New() *Registry {
	return &Registry{byID: make(map[download.ID]*download.Task)}
}

// Load replaces the contents of the registry with tasks, ordered by their existing Order values (ties keep the
// given order), then renumbered densely.
func (r *Registry) Load(tasks []*download.Task) error {
	byID := make(map[download.ID]*download.Task, len(tasks))
	for _, t := range tasks {
		if _, ok := byID[t.ID()]; ok {
			return ErrDuplicateTask
		}
		byID[t.ID()] = t
	}
	sorted := append([]*download.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Snapshot().Order < sorted[j].Snapshot().Order
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks, r.byID = sorted, byID
	r.renumber(0)
	return nil
}

// Add appends t to the end of the list.
func (r *Registry) Add(t *download.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID()]; ok {
		return ErrDuplicateTask
	}
	t.SetOrder(len(r.tasks))
	r.tasks = append(r.tasks, t)
	r.byID[t.ID()] = t
	return nil
}

// Remove takes the task out of the list. If deleteFile is set, the task's saved file is deleted too; a file that
// is already gone is not an error.
func (r *Registry) Remove(id download.ID, deleteFile bool) (*download.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	index := r.indexOf(t)
	r.tasks = append(r.tasks[:index], r.tasks[index+1:]...)
	delete(r.byID, id)
	r.renumber(index)

	if deleteFile {
		if path := t.Snapshot().SavedPath; path != "" {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return t, err
			}
		}
	}
	return t, nil
}

// Move takes the task at index from so that it ends up at index to, shifting the tasks in between.
func (r *Registry) Move(from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.tasks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	t := r.tasks[from]
	if from < to {
		copy(r.tasks[from:to], r.tasks[from+1:to+1])
	} else {
		copy(r.tasks[to+1:from+1], r.tasks[to:from])
	}
	r.tasks[to] = t
	r.renumber(0)
	return nil
}

// IndexOf returns the position of the task, or -1.
func (r *Registry) IndexOf(id download.ID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byID[id]; ok {
		return r.indexOf(t)
	}
	return -1
}

func (r *Registry) Get(id download.ID) (*download.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, ErrTaskNotFound
}

// List returns the tasks in order.
func (r *Registry) List() []*download.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*download.Task(nil), r.tasks...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func (r *Registry) indexOf(t *download.Task) int {
	for i, other := range r.tasks {
		if other == t {
			return i
		}
	}
	return -1
}

// renumber rewrites Order for every task from index start onwards.
func (r *Registry) renumber(start int) {
	for i := start; i < len(r.tasks); i++ {
		if r.tasks[i].Snapshot().Order != i {
			r.tasks[i].SetOrder(i)
		}
	}
}
