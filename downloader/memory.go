package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryDownloader keeps calendars in memory. Bodies are kept for
// CacheTTL when caching is requested. Client errors, such as a
// calendar that was deleted or made private, are remembered for
// FailureTTL so they aren't requested again on every refresh.
type MemoryDownloader struct {
	TimeNow func() time.Time

	mutex    sync.Mutex
	bodies   map[string]memoryBody
	failures map[string]memoryFailure
}

type memoryBody struct {
	data    []byte
	expires time.Time
}

type memoryFailure struct {
	err   error
	until time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		TimeNow:  time.Now,
		bodies:   map[string]memoryBody{},
		failures: map[string]memoryFailure{},
	}
}

func (d *MemoryDownloader) lookup(url string, options GetOptions) ([]byte, bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	now := d.TimeNow()

	if options.Cache {
		if b, ok := d.bodies[url]; ok && b.expires.After(now) {
			log.Debug().Str("url", url).Msg("cache hit")
			return b.data, true, nil
		}
	}

	if f, ok := d.failures[url]; ok && options.FailureTTL > 0 {
		if f.until.After(now) {
			log.Debug().Str("url", url).Time("until", f.until).Msg("skipping recently failed calendar")
			return nil, true, fmt.Errorf("failed recently, retrying after %s: %w", f.until.Format(time.RFC3339), f.err)
		}
		delete(d.failures, url)
	}

	return nil, false, nil
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if body, ok, err := d.lookup(url, options); ok {
		return body, err
	}

	body, err := HTTPGet(ctx, url, headers, options)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if err != nil {
		var statusErr *StatusError
		if options.FailureTTL > 0 && errors.As(err, &statusErr) &&
			statusErr.StatusCode >= http.StatusBadRequest && statusErr.StatusCode < http.StatusInternalServerError {
			d.failures[url] = memoryFailure{err: err, until: d.TimeNow().Add(options.FailureTTL)}
		}
		return nil, err
	}

	if options.Cache {
		d.bodies[url] = memoryBody{data: body, expires: d.TimeNow().Add(options.CacheTTL)}
	}

	return body, nil
}
