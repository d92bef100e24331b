// Package store keeps every tender ever acquired in a single sql table keyed
// by the tender key, remembering which keywords surfaced it and when.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/tender"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

//go:embed schema.sql
var Schema string

var ErrNotFound = errors.New("tender not found")

type PersistStats struct {
	Inserted int
	Updated  int
	// Skipped counts records without a key and, in insert only mode,
	// records that already existed.
	Skipped int
}

type Options struct {
	// InsertOnly never touches a row that already exists.
	InsertOnly bool
}

// Row is a stored tender along with its bookkeeping columns.
type Row struct {
	Key         string
	Keywords    []string
	LastKeyword string
	Tender      tender.Tender
	CreatedAt   time.Time
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	UpdatedAt   time.Time
}

type Store struct {
	db    *sql.DB
	clock chrono.TimeAPI
	opts  Options
}

// New applies the schema to db and returns a Store over it.
func New(ctx context.Context, db *sql.DB, clock chrono.TimeAPI, opts Options) (Store, error) {
	assert.NotNil(db)
	assert.NotNil(clock)

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return Store{}, fmt.Errorf("apply schema: %w", err)
		}
	}
	return Store{db: db, clock: clock, opts: opts}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

// PersistTenders upserts tenders found under keyword in one transaction.
func (s Store) PersistTenders(ctx context.Context, keyword string, tenders []tender.Tender) (PersistStats, error) {
	stats := PersistStats{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	now := s.now()
	for _, t := range tenders {
		key := t.Key()
		if key == "" {
			stats.Skipped++
			continue
		}
		t.Keyword = ""
		payload, err := json.Marshal(t)
		if err != nil {
			return stats, err
		}

		var rawKeywords string
		err = tx.QueryRowContext(ctx, "select keywords from tender where key = ?", key).Scan(&rawKeywords)
		if errors.Is(err, sql.ErrNoRows) {
			keywords, err := encodeKeywords(addKeyword(nil, keyword))
			if err != nil {
				return stats, err
			}
			_, err = tx.ExecContext(
				ctx,
				`insert into tender(
					key, source, reference, detail_url, title, organisation, closing_date,
					keywords, last_keyword, payload,
					created_at, first_seen_at, last_seen_at, updated_at
				) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				key, sourceOf(t), t.Reference, t.DetailUrl, t.Title, t.Organisation, t.ClosingDate,
				keywords, keyword, string(payload),
				now, now, now, now,
			)
			if err != nil {
				return stats, fmt.Errorf("insert %s: %w", key, err)
			}
			stats.Inserted++
			continue
		}
		if err != nil {
			return stats, err
		}
		if s.opts.InsertOnly {
			stats.Skipped++
			continue
		}

		keywords, err := encodeKeywords(addKeyword(decodeKeywords(rawKeywords), keyword))
		if err != nil {
			return stats, err
		}
		_, err = tx.ExecContext(
			ctx,
			`update tender set
				title = ?, organisation = ?, closing_date = ?,
				keywords = ?, last_keyword = ?, payload = ?,
				last_seen_at = ?, updated_at = ?
			where key = ?`,
			t.Title, t.Organisation, t.ClosingDate,
			keywords, keyword, string(payload),
			now, now,
			key,
		)
		if err != nil {
			return stats, fmt.Errorf("update %s: %w", key, err)
		}
		stats.Updated++
	}

	err = tx.Commit()
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Keys returns the set of every stored tender key.
func (s Store) Keys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "select key from tender")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var key string
		err = rows.Scan(&key)
		if err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

const rowColumns = `key, keywords, last_keyword, payload, created_at, first_seen_at, last_seen_at, updated_at`

// List returns the most recently seen tenders first, limit <= 0 returns
// every row.
func (s Store) List(ctx context.Context, limit int) ([]Row, error) {
	query := "select " + rowColumns + " from tender order by last_seen_at desc, key asc"
	args := []any{}
	if limit > 0 {
		query += " limit ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s Store) Get(ctx context.Context, key string) (Row, error) {
	row, err := scanRow(s.db.QueryRowContext(ctx, "select "+rowColumns+" from tender where key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	return row, err
}

// Reset drops every stored tender.
func (s Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "delete from tender")
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(src scanner) (Row, error) {
	var row Row
	var keywords, payload string
	var createdAt, firstSeenAt, lastSeen, updated string
	err := src.Scan(&row.Key, &keywords, &row.LastKeyword, &payload, &createdAt, &firstSeenAt, &lastSeen, &updated)
	if err != nil {
		return Row{}, err
	}
	err = json.Unmarshal([]byte(payload), &row.Tender)
	if err != nil {
		return Row{}, fmt.Errorf("decode payload of %s: %w", row.Key, err)
	}
	row.Keywords = decodeKeywords(keywords)
	row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	row.FirstSeenAt, _ = time.Parse(time.RFC3339Nano, firstSeenAt)
	row.LastSeenAt, _ = time.Parse(time.RFC3339Nano, lastSeen)
	row.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return row, nil
}

func sourceOf(t tender.Tender) string {
	if t.Source == "" {
		return tender.SourceEprocure
	}
	return t.Source
}

func addKeyword(keywords []string, keyword string) []string {
	if keyword == "" || slices.Contains(keywords, keyword) {
		return keywords
	}
	return append(keywords, keyword)
}

func decodeKeywords(raw string) []string {
	var keywords []string
	err := json.Unmarshal([]byte(raw), &keywords)
	if err != nil || keywords == nil {
		return []string{}
	}
	return keywords
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	return string(encoded), err
}
