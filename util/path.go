package util

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SanitizeFilename reduces name to a single usable path element, rejecting names that are empty or only dots.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	// Treat both separators as separators, whatever the platform
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "/" || strings.ReplaceAll(name, ".", "") == "" {
		return "", ErrNoFilename
	}
	return name, nil
}

// SplitExt splits the last path element of p into stem and extension (without the dot). Only the final extension is
// split off, so "a.tar.gz" gives ("a.tar", "gz").
func SplitExt(p string) (stem string, ext string) {
	base := filepath.Base(p)
	dotExt := filepath.Ext(base)
	if dotExt == base {
		// Dotfile like ".profile": no extension
		return base, ""
	}
	return strings.TrimSuffix(base, dotExt), strings.TrimPrefix(dotExt, ".")
}

// UniquePath returns p if nothing exists there, otherwise the first of "stem_1.ext", "stem_2.ext", ... in the same
// directory that doesn't exist. Files created by someone else between the check and use of the path are not
// guarded against.
func UniquePath(p string) (string, error) {
	exists, err := pathExists(p)
	if err != nil || !exists {
		return p, err
	}
	dir := filepath.Dir(p)
	stem, ext := SplitExt(p)
	for i := 1; ; i++ {
		name := stem + "_" + strconv.Itoa(i)
		if ext != "" {
			name += "." + ext
		}
		candidate := filepath.Join(dir, name)
		if exists, err = pathExists(candidate); err != nil {
			return "", err
		} else if !exists {
			return candidate, nil
		}
	}
}

func pathExists(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}
