package download

import (
	"errors"
	"fmt"
)

var (
	ErrSourceMissing  = errors.New("download has no source URL")
	ErrAlreadyRunning = errors.New("download already running")
	ErrSourceLocked   = errors.New("source cannot change while downloading")
)

// TransportError is a failure of the transfer itself, e.g. network or server errors.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FilesystemError is a failure to put a finished transfer in its final location.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%v %v: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
