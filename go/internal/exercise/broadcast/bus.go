// Package broadcast propagates the latest exercise snapshot to every other ExCon process.
//
// A publish writes the durable checkpoint, sends the snapshot on the direct channel when
// one is configured, and writes the ping key. Subscribers receive direct messages as they
// arrive and, when a checkpoint or ping write by another process is observed, re-read the
// checkpoint. The fallback path always delivers the latest checkpoint, not necessarily
// the snapshot of the write that woke it.
package broadcast

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/excon/go/internal/exercise/checkpoint"
	"github.com/mcdev12/excon/go/internal/exercise/events"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Names are the well-known keys and channel shared by one deployment.
type Names struct {
	CheckpointKey string
	PingKey       string
	Channel       string
}

// NamesFor derives the well-known names from a deployment name.
func NamesFor(deployment string) Names {
	if deployment == "" {
		deployment = "excon"
	}
	return Names{
		CheckpointKey: deployment + ".dashboard.state",
		PingKey:       deployment + ".dashboard.ping",
		Channel:       deployment + ".sync",
	}
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the clock used for message and ping timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithOrigin overrides the generated process origin.
func WithOrigin(origin string) Option {
	return func(b *Bus) { b.origin = origin }
}

// Bus is one process's view of the sync layer.
type Bus struct {
	kv      checkpoint.KV
	ch      Channel
	names   Names
	origin  string
	clock   clockwork.Clock
	metrics metrics.Collector
}

// New creates a Bus. ch may be nil, in which case the checkpoint and ping writes are the
// only delivery path.
func New(kv checkpoint.KV, ch Channel, names Names, opts ...Option) *Bus {
	b := &Bus{
		kv:      kv,
		ch:      ch,
		names:   names,
		origin:  uuid.NewString(),
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin identifies this process on the KV and the channel.
func (b *Bus) Origin() string { return b.origin }

// Names returns the well-known names in use.
func (b *Bus) Names() Names { return b.names }

// Publish pushes snap to every other process. It never fails: storage and channel errors
// are logged and counted, and the caller's own state stays authoritative.
func (b *Bus) Publish(ctx context.Context, snap models.DashboardSnapshot) {
	ok := checkpoint.SaveSnapshot(ctx, b.kv, b.origin, b.names.CheckpointKey, snap)
	b.metrics.RecordPublish(metrics.PathCheckpoint, ok)

	now := b.clock.Now()
	if b.ch != nil {
		err := b.ch.Send(ctx, events.NewState(b.origin, snap, now))
		if err != nil {
			log.Warn().Err(err).Str("channel", b.names.Channel).Msg("direct broadcast failed")
		}
		b.metrics.RecordPublish(metrics.PathDirect, err == nil)
	}

	err := b.kv.Set(ctx, b.origin, b.names.PingKey, []byte(strconv.FormatInt(now.UnixMilli(), 10)))
	if err != nil {
		log.Warn().Err(err).Str("key", b.names.PingKey).Msg("failed to write sync ping")
	}
	b.metrics.RecordPublish(metrics.PathPing, err == nil)

	log.Debug().
		Int("current_seconds", snap.CurrentSeconds).
		Bool("is_running", snap.IsRunning).
		Msg("snapshot published")
}

// ReadLast returns the current checkpoint, or nil when there is none or it is corrupt.
func (b *Bus) ReadLast(ctx context.Context) *models.DashboardSnapshot {
	return checkpoint.ReadSnapshot(ctx, b.kv, b.names.CheckpointKey)
}

// Subscribe calls onUpdate with snapshots published by other processes until the
// returned function is called or ctx is done. Calls are serialized. The returned
// function is safe to call more than once and no callback starts after it returns.
func (b *Bus) Subscribe(ctx context.Context, onUpdate func(models.DashboardSnapshot)) (func(), error) {
	var (
		mu      sync.Mutex
		stopped atomic.Bool
	)
	deliver := func(path string, snap models.DashboardSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		if stopped.Load() {
			return
		}
		b.metrics.RecordDelivery(path)
		onUpdate(snap)
	}

	var stops []func()
	if b.ch != nil {
		stopListen, err := b.ch.Listen(func(msg events.Message) {
			if msg.Origin == b.origin || msg.Type != events.TypeState {
				return
			}
			deliver(metrics.PathDirect, msg.Payload)
		})
		if err != nil {
			log.Warn().Err(err).Str("channel", b.names.Channel).Msg("direct broadcast unavailable, using checkpoint fallback only")
		} else {
			stops = append(stops, stopListen)
		}
	}

	stopWatch, err := b.kv.Watch(ctx, b.origin, func(key string) {
		if key != b.names.PingKey && key != b.names.CheckpointKey {
			return
		}
		snap := b.ReadLast(ctx)
		if snap == nil {
			return
		}
		deliver(metrics.PathFallback, *snap)
	})
	if err != nil {
		for _, stop := range stops {
			stop()
		}
		return nil, err
	}
	stops = append(stops, stopWatch)

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, stop := range stops {
				stop()
			}
			stopped.Store(true)
		})
	}, nil
}
