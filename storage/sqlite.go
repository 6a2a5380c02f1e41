package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"seikabus.dev/shuttle/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/shuttle.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: gets a database of its own.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    url TEXT NOT NULL,
    hash TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    refreshed_at TIMESTAMP NOT NULL,
PRIMARY KEY (url)
);

CREATE TABLE IF NOT EXISTS event (
    url TEXT NOT NULL,
    uid TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL,
    start_at INTEGER NOT NULL,
    end_at INTEGER NOT NULL,
    all_day INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS event_url ON event (url);
CREATE INDEX IF NOT EXISTS event_start ON event (start_at);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) ListFeeds(filter ListFeedsFilter) ([]*CalendarFeed, error) {
	query := `
SELECT
    url,
    hash,
    retrieved_at,
    refreshed_at
FROM feed`

	params := []interface{}{}
	if filter.URL != "" {
		query += " WHERE url = ?"
		params = append(params, filter.URL)
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	feeds := []*CalendarFeed{}
	for rows.Next() {
		var feed CalendarFeed
		err := rows.Scan(
			&feed.URL,
			&feed.Hash,
			&feed.RetrievedAt,
			&feed.RefreshedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feed.RetrievedAt = feed.RetrievedAt.UTC()
		feed.RefreshedAt = feed.RefreshedAt.UTC()
		feeds = append(feeds, &feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feeds: %w", err)
	}

	return feeds, nil
}

func (s *SQLiteStorage) WriteFeed(feed *CalendarFeed) error {
	_, err := s.db.Exec(`
INSERT INTO feed (
    url,
    hash,
    retrieved_at,
    refreshed_at
)
VALUES (?, ?, ?, ?)
ON CONFLICT (url) DO UPDATE SET
    hash = excluded.hash,
    retrieved_at = excluded.retrieved_at,
    refreshed_at = excluded.refreshed_at
`,
		feed.URL,
		feed.Hash,
		feed.RetrievedAt.UTC(),
		feed.RefreshedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) WriteEvents(url string, events []model.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("DELETE FROM event WHERE url = ?", url)
	if err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO event (url, uid, summary, description, start_at, end_at, all_day)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		allDay := 0
		if e.AllDay {
			allDay = 1
		}
		_, err = stmt.Exec(url, e.UID, e.Summary, e.Description, e.Start.Unix(), e.End.Unix(), allDay)
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", e.UID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) ListEvents(filter ListEventsFilter) ([]model.Event, error) {
	query := `
SELECT
    url,
    uid,
    summary,
    description,
    start_at,
    end_at,
    all_day
FROM event`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		conditions = append(conditions, "url = ?")
		params = append(params, filter.URL)
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "end_at > ?")
		params = append(params, filter.Start.Unix())
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "start_at < ?")
		params = append(params, filter.End.Unix())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY start_at, url, uid"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var start, end int64
		var allDay int
		err := rows.Scan(
			&e.Calendar,
			&e.UID,
			&e.Summary,
			&e.Description,
			&start,
			&end,
			&allDay,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Start = time.Unix(start, 0).UTC()
		e.End = time.Unix(end, 0).UTC()
		e.AllDay = allDay != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}
