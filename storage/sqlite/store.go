// Package sqlite persists every server-side collection (users, emails,
// browser sessions, grants, tokens, clients, queued mail) in a single SQLite
// file, so the whole provider deploys as one binary plus one database.
package sqlite

import (
	"database/sql"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-ident-server/storage/sqlite/migrations"
)

// Store owns the database handle. Per-domain repositories hang off it via
// the accessor methods; all of them share the same file and schema.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[sqlite.Open] storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlite.Open] opening database")
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] pinging database")
	}

	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] running migrations")
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Users returns the user account repository.
func (s *Store) Users() *UserStore { return &UserStore{sqlDB: s.sqlDB} }

// Emails returns the address and verification code repository.
func (s *Store) Emails() *EmailStore { return &EmailStore{sqlDB: s.sqlDB} }

// Sessions returns the browser session store.
func (s *Store) Sessions() *SessionStore { return &SessionStore{sqlDB: s.sqlDB} }

// Clients returns the registered client repository.
func (s *Store) Clients() *ClientStore { return &ClientStore{sqlDB: s.sqlDB} }

// Grants returns the authorization grant repository.
func (s *Store) Grants() *GrantStore { return &GrantStore{sqlDB: s.sqlDB} }

// Tokens returns the token metadata repository.
func (s *Store) Tokens() *TokenStore { return &TokenStore{sqlDB: s.sqlDB} }

// MailQueue returns the pending mail queue.
func (s *Store) MailQueue() *MailQueueStore { return &MailQueueStore{sqlDB: s.sqlDB} }

// DB exposes the raw handle for callers that manage their own statements.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func millisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func ipToString(ip netip.Addr) string {
	if !ip.IsValid() {
		return ""
	}
	return ip.String()
}

func ipFromString(value string) netip.Addr {
	if value == "" {
		return netip.Addr{}
	}
	ip, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}
	}
	return ip
}

// isUniqueViolation matches SQLite's constraint error text for one column.
func isUniqueViolation(err error, column string) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
