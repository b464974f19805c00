package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/excon/go/internal/sqlutil"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	defaultSQLitePath   = "excon.db"
	defaultPollInterval = 500 * time.Millisecond
)

// SQLiteStore is a file-backed KV that several processes on one host can share.
// Every write bumps a per-key version; watchers poll the versions to detect writes by
// other processes.
type SQLiteStore struct {
	db           *sql.DB
	path         string
	clock        clockwork.Clock
	pollInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithClock sets the clock driving the watch poll.
func WithClock(c clockwork.Clock) SQLiteOption {
	return func(s *SQLiteStore) { s.clock = c }
}

// WithPollInterval sets how often watchers check for foreign writes.
func WithPollInterval(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewSQLiteStore opens (creating if needed) the sqlite file at path.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		version INTEGER NOT NULL,
		origin TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		path:         path,
		clock:        clockwork.NewRealClock(),
		pollInterval: defaultPollInterval,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type sqliteQueries struct {
	tx *sql.Tx
}

func newSQLiteQueries(tx *sql.Tx) *sqliteQueries { return &sqliteQueries{tx: tx} }

func (q *sqliteQueries) upsert(ctx context.Context, origin, key string, value []byte) error {
	_, err := q.tx.ExecContext(ctx, `INSERT INTO kv(key, value, version, origin) VALUES(?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = kv.version + 1, origin = excluded.origin`,
		key, value, origin)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, origin, key string, value []byte) error {
	err := sqlutil.Run(ctx, s.db, newSQLiteQueries, func(q *sqliteQueries) error {
		return q.upsert(ctx, origin, key, value)
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

type keyVersion struct {
	version int64
	origin  string
}

func (s *SQLiteStore) versions(ctx context.Context) (map[string]keyVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, version, origin FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("select versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]keyVersion)
	for rows.Next() {
		var key string
		var kv keyVersion
		if err := rows.Scan(&key, &kv.version, &kv.origin); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[key] = kv
	}
	return out, rows.Err()
}

// Watch takes a baseline of the current versions before returning, so any write that
// lands after Watch returns is reported on a later poll.
func (s *SQLiteStore) Watch(ctx context.Context, origin string, fn WatchFunc) (func(), error) {
	seen, err := s.versions(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.pollInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case <-ticker.Chan():
				current, err := s.versions(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Warn().Err(err).Str("path", s.path).Msg("checkpoint poll failed")
					}
					continue
				}
				for _, key := range sortedKeys(current) {
					kv := current[key]
					if prev, ok := seen[key]; ok && prev.version == kv.version {
						continue
					}
					seen[key] = kv
					if kv.origin != origin {
						fn(key)
					}
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// Close stops all watchers and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.db.Close()
	})
	return err
}

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

func sortedKeys(m map[string]keyVersion) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
