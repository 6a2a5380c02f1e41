package downloader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Caches downloaded files in a JSON file on disk, so that calendars
// survive restarts. An expired record is still served if the
// download fails.
type Filesystem struct {
	Path    string
	Records map[string]fsRecord

	TimeNow func() time.Time

	mutex sync.Mutex
}

type fsRecord struct {
	Body        string `json:"body"`
	RetrievedAt string `json:"retrieved_at"`
}

func NewFilesystem(path string) (*Filesystem, error) {
	fs := &Filesystem{
		Path:    path,
		Records: map[string]fsRecord{},
		TimeNow: time.Now,
	}

	err := fs.load()
	if err != nil {
		return nil, err
	}

	return fs, nil
}

func (f *Filesystem) cached(url string) ([]byte, time.Time, bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	record, found := f.Records[url]
	if !found {
		return nil, time.Time{}, false, nil
	}

	retrievedAt, err := time.Parse(time.RFC3339, record.RetrievedAt)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parsing retrieved_at: %w", err)
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decoding: %w", err)
	}

	return body, retrievedAt, true, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	var stale []byte
	if options.Cache {
		body, retrievedAt, found, err := f.cached(url)
		if err != nil {
			return nil, err
		}
		if found {
			if retrievedAt.Add(options.CacheTTL).After(f.TimeNow()) {
				log.Debug().Str("url", url).Msg("cache hit")
				return body, nil
			}
			log.Debug().Str("url", url).Msg("cache expired")
			stale = body
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		if stale != nil {
			log.Warn().Err(err).Str("url", url).Msg("serving expired cache record")
			return stale, nil
		}
		return nil, fmt.Errorf("http get: %w", err)
	}

	if options.Cache {
		f.mutex.Lock()
		defer f.mutex.Unlock()

		f.Records[url] = fsRecord{
			Body:        base64.StdEncoding.EncodeToString(body),
			RetrievedAt: f.TimeNow().UTC().Format(time.RFC3339),
		}
		err = f.save()
		if err != nil {
			return nil, fmt.Errorf("saving: %w", err)
		}
	}

	return body, nil
}

func (f *Filesystem) load() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	_, err := os.Stat(f.Path)
	if os.IsNotExist(err) {
		return nil
	}

	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	err = json.Unmarshal(buf, &f.Records)
	if err != nil {
		return fmt.Errorf("unmarshalling: %w", err)
	}

	return nil
}

func (f *Filesystem) save() error {
	buf, err := json.Marshal(f.Records)
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	err = os.WriteFile(f.Path, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	return nil
}
