package transport

import (
	"fmt"
	"os"
)

const stagingPattern = "download-*.part"

// stagingArea is the directory that in-progress transfers write to before they are handed over on completion.
type stagingArea struct {
	dir string
}

func newStagingArea(dir string) stagingArea {
	if dir == "" {
		dir = os.TempDir()
	}
	return stagingArea{dir: dir}
}

func (s stagingArea) create() (*os.File, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return os.CreateTemp(s.dir, stagingPattern)
}

// reopen opens an existing staging file to continue writing at offset, or at its current size if that is smaller.
func (s stagingArea) reopen(path string, offset int64) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.Size() < offset {
		offset = info.Size()
	}
	if err := f.Truncate(offset); err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, offset, nil
}
