package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"seikabus.dev/shuttle/model"
)

type PSQLStorage struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS feed;
DROP TABLE IF EXISTS event;
`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    url TEXT NOT NULL,
    hash TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    refreshed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (url)
);

CREATE TABLE IF NOT EXISTS event (
    url TEXT NOT NULL,
    uid TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    all_day BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS event_url ON event (url);
CREATE INDEX IF NOT EXISTS event_start ON event (start_at);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListFeeds(filter ListFeedsFilter) ([]*CalendarFeed, error) {
	query := `
SELECT
    url,
    hash,
    retrieved_at,
    refreshed_at
FROM feed`

	params := []interface{}{}
	if filter.URL != "" {
		query += " WHERE url = $1"
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

func (s *PSQLStorage) WriteFeed(feed *CalendarFeed) error {
	_, err := s.db.Exec(`
INSERT INTO feed (url, hash, retrieved_at, refreshed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO UPDATE SET
    hash = EXCLUDED.hash,
    retrieved_at = EXCLUDED.retrieved_at,
    refreshed_at = EXCLUDED.refreshed_at
`,
		feed.URL,
		feed.Hash,
		feed.RetrievedAt,
		feed.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	return nil
}

func (s *PSQLStorage) WriteEvents(url string, events []model.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("DELETE FROM event WHERE url = $1", url)
	if err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn(
		"event", "url", "uid", "summary", "description", "start_at", "end_at", "all_day",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err = stmt.Exec(url, e.UID, e.Summary, e.Description, e.Start.UTC(), e.End.UTC(), e.AllDay)
		if err != nil {
			return fmt.Errorf("COPY event: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func (s *PSQLStorage) ListEvents(filter ListEventsFilter) ([]model.Event, error) {
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
	paramCount := 1

	if filter.URL != "" {
		conditions = append(conditions, fmt.Sprintf("url = $%d", paramCount))
		params = append(params, filter.URL)
		paramCount++
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("end_at > $%d", paramCount))
		params = append(params, filter.Start)
		paramCount++
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", paramCount))
		params = append(params, filter.End)
		paramCount++
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
		err := rows.Scan(
			&e.Calendar,
			&e.UID,
			&e.Summary,
			&e.Description,
			&e.Start,
			&e.End,
			&e.AllDay,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, normalizeEvent(e))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}
