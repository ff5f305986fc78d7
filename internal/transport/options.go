package transport

import (
	"time"

	"golang.org/x/time/rate"
)

type Options struct {
	// Directory for staging files; defaults to os.TempDir().
	TempDir string
	// Bandwidth cap in bytes per second for each transfer, 0 for unlimited.
	RateLimit int64
	// A transfer that receives nothing for this long is treated as a lost connection, 0 to disable.
	InactivityTimeout time.Duration
	// Time to wait for response headers, 0 for no limit.
	RequestTimeout time.Duration
	// Reconnection attempts after a lost connection before the transfer fails. Attempts that received data
	// reset the count.
	RetryAttempts   int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	BufferSize      int
	UserAgent       string
}

func DefaultOptions() Options {
	return Options{
		InactivityTimeout: 30 * time.Second,
		RequestTimeout:    30 * time.Second,
		RetryAttempts:     5,
		RetryBackoff:      time.Second,
		RetryMaxBackoff:   30 * time.Second,
		BufferSize:        32 * 1024,
		UserAgent:         "download-manager/1.0",
	}
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 32 * 1024
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.RetryMaxBackoff < o.RetryBackoff {
		o.RetryMaxBackoff = o.RetryBackoff
	}
	return o
}

func (o Options) newLimiter() *rate.Limiter {
	if o.RateLimit <= 0 {
		return nil
	}
	burst := int(o.RateLimit)
	if burst < o.BufferSize {
		burst = o.BufferSize
	}
	return rate.NewLimiter(rate.Limit(o.RateLimit), burst)
}
