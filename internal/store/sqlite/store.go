// Package sqlite implements store.RemoteStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version after the schema runs.
// A database stamped with a higher version belongs to a newer server.
const schemaVersion = 2

// upgrades[v] moves a database stamped with version v to v+1.
var upgrades = map[int]string{
	1: `ALTER TABLE user_stats ADD COLUMN last_outcome_episode INTEGER NOT NULL DEFAULT 0`,
}

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
}

// dsn appends connPragmas to path as modernc _pragma parameters.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Store is the embedded RemoteStore: one SQLite file holding the session,
// stats, achievement, episode and article tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.RemoteStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and brings the schema
// up to date.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("sqlite remote store opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	// Fresh databases get the current schema directly.
	if version > 0 {
		for v := version; v < schemaVersion; v++ {
			if _, err := db.Exec(upgrades[v]); err != nil {
				return fmt.Errorf("upgrade schema from version %d: %w", v, err)
			}
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.Unavailable("ping", err)
	}
	return nil
}

// Times are stored as UTC RFC3339Nano text.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d domain.CalendarDate) sql.NullString {
	return nullString(d.String())
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
