package download

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/util"
)

const fallbackFilename = "download"

// destinationName picks the filename for a finished download: the name suggested by the transfer, then the task
// name, then the URL's filename.
func destinationName(rec Record, suggested string) string {
	for _, candidate := range []string{suggested, rec.Name} {
		if name, err := util.SanitizeFilename(candidate); err == nil {
			return name
		}
	}
	if name, err := util.FilenameFromURLString(rec.Source); err == nil {
		return name
	}
	return fallbackFilename
}

// How many names reservePath tries after the one util.UniquePath picked has been taken.
const reserveAttempts = 100

// reservePath creates an empty placeholder for name, or the first free name_N variant of it, in the save
// directory. The placeholder is replaced by the finished file.
func (r *Runner) reservePath(name string) (string, error) {
	dir := r.config.SaveDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &FilesystemError{Op: "create directory", Path: dir, Err: err}
	}
	p := filepath.Join(dir, name)
	for i := 0; i < reserveAttempts; i++ {
		target, err := util.UniquePath(p)
		if err != nil {
			return "", &FilesystemError{Op: "resolve destination", Path: p, Err: err}
		}
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		} else if err != nil {
			return "", &FilesystemError{Op: "reserve", Path: target, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &FilesystemError{Op: "reserve", Path: target, Err: err}
		}
		return target, nil
	}
	return "", &FilesystemError{Op: "reserve", Path: p, Err: os.ErrExist}
}

func removeFile(log *zap.SugaredLogger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnw("failed to remove file", "path", path, "error", err)
	}
}

// moveFile renames src over dst, copying instead if they are on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
