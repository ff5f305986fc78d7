package util

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
	ErrEmptyURL   = errors.New("empty URL")
)

func FilenameFromURL(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrNoFilename
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "", ErrNoFilename
	}
	return SanitizeFilename(path.Base(p))
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// NormalizeURL tidies up a user-entered URL: surrounding whitespace and a trailing "/" are removed, and "https://"
// is assumed when no scheme is given.
func NormalizeURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyURL
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	s = strings.TrimSuffix(s, "/")
	parsed, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" && parsed.Scheme != "file" {
		return "", errors.New("URL has no host")
	}
	return parsed.String(), nil
}
