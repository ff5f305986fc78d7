package sqlitedb

import (
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/download-manager/internal/download"
)

func TestRoundTrip(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "tasks.sqlite")
	db, err := New(path)
	require.NoError(t, err)

	added := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	paused := download.Record{
		ID:              "a",
		Name:            "a.bin",
		Source:          "https://example.com/a.bin",
		Resumable:       true,
		AllowBackground: true,
		Progress:        0.25,
		State:           download.StatePaused,
		Checkpoint:      []byte{0, 1, 2, 255},
		Order:           1,
		AddedAt:         added,
	}
	failed := download.Record{ID: "b", Source: "https://example.com/b", State: download.StateFailed, Error: "boom", AddedAt: added}
	assert.Nil(db.WriteTask(&paused))
	assert.Nil(db.WriteTask(&failed))
	require.NoError(t, db.Close())

	// Reopening doesn't need to migrate again, and the data is still there
	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	records, err := db.ListTasks()
	assert.Nil(err)
	if assert.Len(records, 2) {
		// Ordered by sort order
		assert.True(failed.Equal(records[0]), "%+v", records[0])
		assert.True(paused.Equal(records[1]), "%+v", records[1])
	}

	// Writing again updates in place
	paused.State = download.StateFinished
	paused.Checkpoint = nil
	paused.SavedPath = "/tmp/a.bin"
	assert.Nil(db.WriteTask(&paused))
	assert.Nil(db.DeleteTask(&failed))
	records, err = db.ListTasks()
	assert.Nil(err)
	if assert.Len(records, 1) {
		assert.Equal(download.StateFinished, records[0].State)
		assert.Equal("/tmp/a.bin", records[0].SavedPath)
		assert.Empty(records[0].Checkpoint)
	}
}

func TestEmpty(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "tasks.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	records, err := db.ListTasks()
	assert_.Nil(t, err)
	assert_.Empty(t, records)
}
