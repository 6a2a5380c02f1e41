package shuttle

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"seikabus.dev/shuttle/downloader"
	"seikabus.dev/shuttle/model"
	"seikabus.dev/shuttle/parse"
	"seikabus.dev/shuttle/storage"
)

const (
	DefaultStatusRefreshInterval = 15 * time.Minute
	DefaultCalendarTimeout       = 30 * time.Second
	DefaultCalendarMaxSize       = 5 << 20
	DefaultCalendarRetries       = 2
	DefaultCalendarConcurrency   = 4
	DefaultCalendarFailureTTL    = 5 * time.Minute

	DefaultSpecialURL = "https://www.kyoto-seika.ac.jp/bus.html"

	MessageNormal  = "通常運行です"
	MessageOffline = "通常運行です(Offline)"
	MessageLoading = "運行情報を取得中..."

	keywordSuspended = "運休"
	keywordSpecial   = "特別運行"
	keywordNormal    = "通常運行"
)

var ErrNoCalendars = errors.New("no calendars configured")

// Public Google calendars announcing suspensions and special
// operation of the line.
var DefaultCalendarIDs = []string{
	"j12t7hr25vljaf1upjt3rflb1o@group.calendar.google.com",
	"r9emnh13lfnsjt1nhskoiqsht0@group.calendar.google.com",
	"nriv5sug179ineqbiakhusfusg@group.calendar.google.com",
	"58hs039sh6mccrbpivkikk1spg@group.calendar.google.com",
	"ead3frs8apai8oivukldh5jd5o@group.calendar.google.com",
	"l3fc091a3lop4c9hld7ac38d0o@group.calendar.google.com",
}

// Returns the public iCalendar URL of a Google calendar.
func CalendarURL(id string) string {
	return fmt.Sprintf("https://calendar.google.com/calendar/ical/%s/public/basic.ics", url.QueryEscape(id))
}

// Maps calendar IDs to their URLs. Entries that already are http(s)
// URLs are kept as they are.
func CalendarURLs(ids []string) []string {
	urls := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
			urls = append(urls, id)
			continue
		}
		urls = append(urls, CalendarURL(id))
	}
	return urls
}

// Operational status of the line on a given day.
type StatusProvider interface {
	Status(ctx context.Context, date time.Time) (model.Status, error)
}

type StatusObserver interface {
	ObserveStatus(kind model.StatusKind)
	ObserveFetchError(url string)
}

func OfflineStatus() model.Status {
	return model.Status{Kind: model.StatusNormal, Message: MessageOffline}
}

func LoadingStatus() model.Status {
	return model.Status{Kind: model.StatusLoading, Message: MessageLoading}
}

// Derives a day's status from the events overlapping it. Suspension
// takes precedence over special operation, which takes precedence
// over an explicit normal operation notice. Within a kind, the
// earliest event wins.
func Classify(events []model.Event, specialURL string) model.Status {
	find := func(keyword string) (model.Event, bool) {
		for _, e := range events {
			if strings.Contains(e.Summary, keyword) {
				return e, true
			}
		}
		return model.Event{}, false
	}

	if e, ok := find(keywordSuspended); ok {
		return model.Status{Kind: model.StatusSuspended, Message: e.Summary}
	}
	if e, ok := find(keywordSpecial); ok {
		return model.Status{Kind: model.StatusSpecial, Message: e.Summary, URL: specialURL}
	}
	if e, ok := find(keywordNormal); ok {
		return model.Status{Kind: model.StatusNormal, Message: e.Summary}
	}
	return model.Status{Kind: model.StatusNormal, Message: MessageNormal}
}

// CalendarStatus answers status lookups from the line's operation
// calendars. Calendars are downloaded in parallel and stored, and
// refreshed on lookup once RefreshInterval has passed since the last
// attempt.
type CalendarStatus struct {
	CalendarURLs    []string
	RefreshInterval time.Duration
	Timeout         time.Duration
	MaxSize         int
	Retries         uint64
	Concurrency     int
	FailureTTL      time.Duration
	SpecialURL      string
	Downloader      downloader.Downloader
	Observer        StatusObserver
	TimeNow         func() time.Time

	storage  storage.Storage
	location *time.Location

	mutex       sync.Mutex
	attemptedAt time.Time
}

func NewCalendarStatus(s storage.Storage, loc *time.Location, calendarURLs []string) (*CalendarStatus, error) {
	if len(calendarURLs) == 0 {
		return nil, ErrNoCalendars
	}
	if loc == nil {
		return nil, fmt.Errorf("missing location")
	}

	c := &CalendarStatus{
		CalendarURLs:    calendarURLs,
		RefreshInterval: DefaultStatusRefreshInterval,
		Timeout:         DefaultCalendarTimeout,
		MaxSize:         DefaultCalendarMaxSize,
		Retries:         DefaultCalendarRetries,
		Concurrency:     DefaultCalendarConcurrency,
		FailureTTL:      DefaultCalendarFailureTTL,
		SpecialURL:      DefaultSpecialURL,
		TimeNow:         time.Now,
		storage:         s,
		location:        loc,
	}

	// The default downloader follows TimeNow.
	md := downloader.NewMemoryDownloader()
	md.TimeNow = func() time.Time { return c.TimeNow() }
	c.Downloader = md

	return c, nil
}

type calendarFetch struct {
	url  string
	body []byte
	err  error
}

// Downloads all calendars and stores the ones that changed. A
// calendar that can't be fetched or parsed keeps whatever was
// stored for it before. Returns the joined errors of all failed
// calendars.
func (c *CalendarStatus) Refresh(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.refreshLocked(ctx)
}

func (c *CalendarStatus) refreshLocked(ctx context.Context) error {
	previousAttempt := c.attemptedAt
	c.attemptedAt = c.TimeNow()

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	p := pool.NewWithResults[calendarFetch]().WithMaxGoroutines(concurrency)
	for _, u := range c.CalendarURLs {
		u := u
		p.Go(func() calendarFetch {
			body, err := c.Downloader.Get(ctx, u, nil, downloader.GetOptions{
				Timeout:    c.Timeout,
				MaxSize:    c.MaxSize,
				Retries:    c.Retries,
				FailureTTL: c.FailureTTL,
			})
			return calendarFetch{url: u, body: body, err: err}
		})
	}

	fetches := p.Wait()

	// An abandoned refresh doesn't count as an attempt, so the next
	// lookup retries instead of waiting out the interval.
	if ctx.Err() != nil {
		c.attemptedAt = previousAttempt
	}

	errs := []error{}
	for _, fetch := range fetches {
		err := c.store(fetch)
		if err == nil {
			continue
		}

		log.Warn().Err(err).Str("url", fetch.url).Msg("calendar refresh failed")
		if c.Observer != nil {
			c.Observer.ObserveFetchError(fetch.url)
		}
		errs = append(errs, fmt.Errorf("%s: %w", fetch.url, err))
	}

	return errors.Join(errs...)
}

func (c *CalendarStatus) store(fetch calendarFetch) error {
	if fetch.err != nil {
		return fmt.Errorf("downloading: %w", fetch.err)
	}

	now := c.TimeNow().UTC()
	hash := fmt.Sprintf("%x", sha256.Sum256(fetch.body))

	feeds, err := c.storage.ListFeeds(storage.ListFeedsFilter{URL: fetch.url})
	if err != nil {
		return fmt.Errorf("listing feeds: %w", err)
	}

	if len(feeds) > 0 && feeds[0].Hash == hash {
		feed := feeds[0]
		feed.RefreshedAt = now
		log.Debug().Str("url", fetch.url).Msg("calendar unchanged")
		return c.storage.WriteFeed(feed)
	}

	events, err := parse.ParseCalendar(fetch.url, fetch.body, c.location)
	if err != nil {
		return err
	}

	err = c.storage.WriteEvents(fetch.url, events)
	if err != nil {
		return fmt.Errorf("writing events: %w", err)
	}

	log.Debug().Str("url", fetch.url).Int("events", len(events)).Str("hash", hash[:12]).Msg("calendar updated")

	return c.storage.WriteFeed(&storage.CalendarFeed{
		URL:         fetch.url,
		Hash:        hash,
		RetrievedAt: now,
		RefreshedAt: now,
	})
}

func (c *CalendarStatus) maybeRefresh(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.attemptedAt.IsZero() && c.TimeNow().Sub(c.attemptedAt) < c.RefreshInterval {
		return
	}

	// Lookups share the refresh, so it mustn't end with the caller
	// that happened to trigger it. Downloads are still bounded by
	// Timeout.
	err := c.refreshLocked(context.WithoutCancel(ctx))
	if err != nil {
		log.Warn().Err(err).Msg("status calendars partially unavailable")
	}
}

// Returns the status of the line on date's calendar day, in the
// schedule's timezone. If no calendar has ever been retrieved, the
// line is assumed to operate normally and the result says so.
func (c *CalendarStatus) Status(ctx context.Context, date time.Time) (model.Status, error) {
	c.maybeRefresh(ctx)

	status, err := c.lookup(date)
	if err != nil {
		log.Warn().Err(err).Msg("status lookup failed")
		status = OfflineStatus()
	}

	if c.Observer != nil {
		c.Observer.ObserveStatus(status.Kind)
	}

	return status, err
}

func (c *CalendarStatus) lookup(date time.Time) (model.Status, error) {
	feeds, err := c.storage.ListFeeds(storage.ListFeedsFilter{})
	if err != nil {
		return model.Status{}, fmt.Errorf("listing feeds: %w", err)
	}
	if len(feeds) == 0 {
		return OfflineStatus(), nil
	}

	local := date.In(c.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := c.storage.ListEvents(storage.ListEventsFilter{Start: dayStart, End: dayEnd})
	if err != nil {
		return model.Status{}, fmt.Errorf("listing events: %w", err)
	}

	return Classify(events, c.SpecialURL), nil
}

// Returns when calendars were last fetched successfully, zero if
// never.
func (c *CalendarStatus) RefreshedAt() (time.Time, error) {
	feeds, err := c.storage.ListFeeds(storage.ListFeedsFilter{})
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	for _, f := range feeds {
		if f.RefreshedAt.After(latest) {
			latest = f.RefreshedAt
		}
	}
	return latest, nil
}
