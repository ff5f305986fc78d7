package transport

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alanbriolat/download-manager/util"
)

var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
	ErrBadRange     = errors.New("http: server returned an unexpected range")
)

// HTTP transfers http:// and https:// URLs, continuing interrupted transfers with Range requests where the server
// supports them.
type HTTP struct {
	client *http.Client
	opts   Options
}

// NewHTTPClient creates a client which applies opts.RequestTimeout to waiting for response headers only, leaving
// the body to the inactivity timeout.
func NewHTTPClient(opts Options) *http.Client {
	if opts.RequestTimeout <= 0 {
		return http.DefaultClient
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = opts.RequestTimeout
	return &http.Client{Transport: t}
}

func NewHTTP(client *http.Client, opts Options) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, opts: opts}
}

func (t *HTTP) Open(ctx context.Context, req Request, h Handler) (Stream, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	cp, err := decodeCheckpointFor(req.Checkpoint, req.URL)
	if err != nil {
		return nil, err
	}
	src := &httpSource{client: t.client, url: u, userAgent: t.opts.UserAgent}
	return startStream(ctx, req.URL, src, t.opts, cp, h), nil
}

type httpSource struct {
	client    *http.Client
	url       *url.URL
	userAgent string
}

func (s *httpSource) fetch(ctx context.Context, offset int64, validator string) (*fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		if validator != "" {
			req.Header.Set("If-Range", validator)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	res := &fetched{
		body:      resp.Body,
		total:     -1,
		name:      responseFilename(resp),
		validator: responseValidator(resp),
	}
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		start, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil || start != offset {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %q for offset %d", ErrBadRange, resp.Header.Get("Content-Range"), offset)
		}
		res.offset, res.total = start, total
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.offset, res.total = 0, resp.ContentLength
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		resp.Body.Close()
		// Everything was already received if the resource is exactly offset bytes long.
		if total, ok := unsatisfiedRangeTotal(resp.Header.Get("Content-Range")); ok && total == offset {
			res.body, res.offset, res.total = http.NoBody, offset, total
			return res, nil
		}
		return s.fetch(ctx, 0, "")
	default:
		resp.Body.Close()
		return nil, checkStatusCode(resp)
	}
	return res, nil
}

func checkStatusCode(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code >= 500:
		return retryable(fmt.Errorf("%w: %s", ErrServerError, resp.Status))
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

// responseFilename prefers the filename from Content-Disposition, then the last path segment of the final URL.
func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, err := util.SanitizeFilename(params["filename"]); err == nil {
				return name
			}
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		if name, err := util.FilenameFromURL(resp.Request.URL); err == nil {
			return name
		}
	}
	return ""
}

// responseValidator gives a value for If-Range that identifies this version of the resource. Weak ETags can't be
// used for that.
func responseValidator(resp *http.Response) string {
	if etag := resp.Header.Get("ETag"); etag != "" && !strings.HasPrefix(etag, "W/") {
		return etag
	}
	return resp.Header.Get("Last-Modified")
}

// parseContentRange parses "bytes start-end/total", where total may be "*" (returned as -1).
func parseContentRange(header string) (start, end, total int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range: %q", header)
	}
	rng, size, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range: %q", header)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range: %q", header)
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	if size == "*" {
		return start, end, -1, nil
	}
	if total, err = strconv.ParseInt(size, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
	}
	return start, end, total, nil
}

// unsatisfiedRangeTotal parses the "bytes */total" form sent with 416 responses.
func unsatisfiedRangeTotal(header string) (int64, bool) {
	size, ok := strings.CutPrefix(header, "bytes */")
	if !ok {
		return 0, false
	}
	total, err := strconv.ParseInt(size, 10, 64)
	return total, err == nil
}

