package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/mcdev12/excon/go/internal/dbconfig"
	"github.com/mcdev12/excon/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const (
	defaultNotifyChannel = "excon_checkpoint"
	defaultPingInterval  = 90 * time.Second
)

// PostgresStore is a KV for processes on different hosts. Writes and their pg_notify
// happen in one transaction; watchers LISTEN with a pq.Listener.
type PostgresStore struct {
	pool          *pgxpool.Pool
	dsn           string
	notifyChannel string
	pingInterval  time.Duration
}

// NewPostgresStore connects with pgxpool and ensures the kv table exists.
func NewPostgresStore(ctx context.Context, cfg dbconfig.Config) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS excon_kv (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		origin TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	log.Info().Str("dsn", cfg.Redacted()).Msg("connected checkpoint store to postgres")
	return &PostgresStore{
		pool:          pool,
		dsn:           cfg.DSN(),
		notifyChannel: defaultNotifyChannel,
		pingInterval:  defaultPingInterval,
	}, nil
}

type pgQueries struct {
	tx pgx.Tx
}

func newPgQueries(tx pgx.Tx) *pgQueries { return &pgQueries{tx: tx} }

func (q *pgQueries) upsert(ctx context.Context, origin, key string, value []byte) error {
	_, err := q.tx.Exec(ctx, `INSERT INTO excon_kv (key, value, origin, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, origin = EXCLUDED.origin, updated_at = now()`,
		key, value, origin)
	return err
}

func (q *pgQueries) notify(ctx context.Context, channel, payload string) error {
	_, err := q.tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, payload)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM excon_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, origin, key string, value []byte) error {
	err := sqlutil.RunPool(ctx, p.pool, newPgQueries, func(q *pgQueries) error {
		if err := q.upsert(ctx, origin, key, value); err != nil {
			return err
		}
		return q.notify(ctx, p.notifyChannel, notificationPayload(key, origin))
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Watch(ctx context.Context, origin string, fn WatchFunc) (func(), error) {
	l := pq.NewListener(
		p.dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("checkpoint listener event")
			}
		},
	)
	if err := l.Listen(p.notifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}
	log.Info().Str("channel", p.notifyChannel).Str("origin", origin).Msg("watching checkpoint notifications")

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		pingTicker := time.NewTicker(p.pingInterval)
		defer pingTicker.Stop()
		defer func() { _ = l.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case note := <-l.Notify:
				if note == nil {
					// connection was lost and re-established; notifications may have been missed
					log.Warn().Str("channel", p.notifyChannel).Msg("checkpoint listener reconnected")
					continue
				}
				key, writer, ok := parseNotification(note.Extra)
				if !ok {
					log.Warn().Str("payload", note.Extra).Msg("malformed checkpoint notification")
					continue
				}
				if writer != origin {
					fn(key)
				}
			case <-pingTicker.C:
				if err := l.Ping(); err != nil {
					log.Error().Err(err).Msg("failed to ping checkpoint listener")
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func notificationPayload(key, origin string) string {
	return key + "|" + origin
}

// parseNotification splits "key|origin". Origins never contain '|', keys may.
func parseNotification(payload string) (key, origin string, ok bool) {
	i := strings.LastIndex(payload, "|")
	if i <= 0 {
		return "", "", false
	}
	return payload[:i], payload[i+1:], true
}
