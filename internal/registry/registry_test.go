package registry

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/download-manager/internal/download"
)

func newTasks(names ...string) []*download.Task {
	tasks := make([]*download.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, download.NewTask("https://example.com/"+name, download.Options{Name: name}))
	}
	return tasks
}

func names(tasks []*download.Task) []string {
	var result []string
	for _, t := range tasks {
		result = append(result, t.Snapshot().Name)
	}
	return result
}

func assertDenseOrder(t *testing.T, r *Registry) {
	for i, task := range r.List() {
		assert_.Equal(t, i, task.Snapshot().Order)
	}
}

func newRegistry(t *testing.T, names ...string) (*Registry, []*download.Task) {
	r := New()
	tasks := newTasks(names...)
	for _, task := range tasks {
		require.NoError(t, r.Add(task))
	}
	return r, tasks
}

func TestAdd(t *testing.T) {
	assert := assert_.New(t)
	r, tasks := newRegistry(t, "a", "b", "c")
	assert.Equal([]string{"a", "b", "c"}, names(r.List()))
	assert.Equal(3, r.Len())
	assertDenseOrder(t, r)

	assert.ErrorIs(r.Add(tasks[0]), ErrDuplicateTask)
	assert.Equal(3, r.Len())

	got, err := r.Get(tasks[1].ID())
	assert.Nil(err)
	assert.Same(tasks[1], got)
	_, err = r.Get("nope")
	assert.ErrorIs(err, ErrTaskNotFound)
	assert.Equal(2, r.IndexOf(tasks[2].ID()))
	assert.Equal(-1, r.IndexOf("nope"))
}

func TestMove(t *testing.T) {
	assert := assert_.New(t)
	r, _ := newRegistry(t, "a", "b", "c", "d", "e")

	assert.Nil(r.Move(1, 3))
	assert.Equal([]string{"a", "c", "d", "b", "e"}, names(r.List()))
	assertDenseOrder(t, r)

	assert.Nil(r.Move(4, 0))
	assert.Equal([]string{"e", "a", "c", "d", "b"}, names(r.List()))
	assertDenseOrder(t, r)

	assert.Nil(r.Move(2, 2))
	assert.Equal([]string{"e", "a", "c", "d", "b"}, names(r.List()))

	assert.ErrorIs(r.Move(-1, 0), ErrIndexOutOfRange)
	assert.ErrorIs(r.Move(0, 5), ErrIndexOutOfRange)
	assert.Equal([]string{"e", "a", "c", "d", "b"}, names(r.List()))
}

func TestRemove(t *testing.T) {
	assert := assert_.New(t)
	r, tasks := newRegistry(t, "a", "b", "c")

	removed, err := r.Remove(tasks[0].ID(), false)
	assert.Nil(err)
	assert.Same(tasks[0], removed)
	assert.Equal([]string{"b", "c"}, names(r.List()))
	assertDenseOrder(t, r)

	_, err = r.Remove(tasks[0].ID(), false)
	assert.ErrorIs(err, ErrTaskNotFound)
}

func TestRemoveDeletesFile(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.bin")
	deleted := filepath.Join(dir, "deleted.bin")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(deleted, []byte("x"), 0644))

	a := download.Restore(download.Record{ID: "a", State: download.StateFinished, SavedPath: kept})
	b := download.Restore(download.Record{ID: "b", State: download.StateFinished, SavedPath: deleted})
	c := download.Restore(download.Record{ID: "c", State: download.StateFinished, SavedPath: filepath.Join(dir, "gone.bin")})
	r := New()
	require.NoError(t, r.Load([]*download.Task{a, b, c}))

	_, err := r.Remove("a", false)
	assert.Nil(err)
	assert.FileExists(kept)
	_, err = r.Remove("b", true)
	assert.Nil(err)
	assert.NoFileExists(deleted)
	// Nothing to delete is fine
	_, err = r.Remove("c", true)
	assert.Nil(err)
	assert.Equal(0, r.Len())
}

func TestLoad(t *testing.T) {
	assert := assert_.New(t)
	tasks := []*download.Task{
		download.Restore(download.Record{ID: "x", Name: "x", Order: 7}),
		download.Restore(download.Record{ID: "y", Name: "y", Order: 2}),
		download.Restore(download.Record{ID: "z", Name: "z", Order: 7}),
		download.Restore(download.Record{ID: "w", Name: "w", Order: 0}),
	}
	r := New()
	assert.Nil(r.Load(tasks))
	assert.Equal([]string{"w", "y", "x", "z"}, names(r.List()))
	assertDenseOrder(t, r)

	assert.ErrorIs(r.Load([]*download.Task{tasks[0], tasks[0]}), ErrDuplicateTask)
	assert.Equal(4, r.Len())
}
