package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// File transfers file:// URLs, which is mostly useful for importing local files and for testing.
type File struct {
	opts Options
}

func NewFile(opts Options) *File {
	return &File{opts: opts}
}

func (t *File) Open(ctx context.Context, req Request, h Handler) (Stream, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	cp, err := decodeCheckpointFor(req.Checkpoint, req.URL)
	if err != nil {
		return nil, err
	}
	src := &fileSource{path: filepath.FromSlash(u.Path)}
	return startStream(ctx, req.URL, src, t.opts, cp, h), nil
}

type fileSource struct {
	path string
}

func (s *fileSource) fetch(ctx context.Context, offset int64, validator string) (*fetched, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%v: is a directory", s.path)
	}
	current := fileValidator(info)
	if offset > info.Size() || (validator != "" && validator != current) {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fetched{
		body:      &readCloserContext{readerContext{ctx: ctx, r: f}, f},
		offset:    offset,
		total:     info.Size(),
		name:      info.Name(),
		validator: current,
	}, nil
}

func fileValidator(info os.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(info.Size(), 36)
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type readCloserContext struct {
	readerContext
	io.Closer
}
