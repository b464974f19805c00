package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/excon/go/internal/exercise/broadcast"
	"github.com/mcdev12/excon/go/internal/exercise/checkpoint"
	"github.com/mcdev12/excon/go/internal/exercise/health"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/rs/zerolog/log"
)

// syncLayer is the checkpoint store and optional direct channel joined into a Bus.
type syncLayer struct {
	Bus     *broadcast.Bus
	kv      checkpoint.KV
	channel broadcast.Channel
}

func openSync(ctx context.Context, config *Config, m metrics.Collector) (*syncLayer, error) {
	kv, err := checkpoint.Open(ctx, config.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	names := broadcast.NamesFor(config.Sync.Deployment)

	var ch broadcast.Channel
	if config.Sync.Channel == channelNATS {
		natsConfig := broadcast.DefaultNATSConfig(names.Channel)
		natsConfig.URL = config.Sync.NATSURL
		natsChannel, err := broadcast.NewNATSChannel(natsConfig)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("failed to open sync channel: %w", err)
		}
		ch = natsChannel
	}

	bus := broadcast.New(kv, ch, names, broadcast.WithMetrics(m))
	log.Info().
		Str("origin", bus.Origin()).
		Str("checkpoint_driver", string(config.Checkpoint.Driver)).
		Str("checkpoint_key", names.CheckpointKey).
		Str("channel", config.Sync.Channel).
		Msg("sync layer ready")

	return &syncLayer{Bus: bus, kv: kv, channel: ch}, nil
}

// healthChecker probes the checkpoint store and, when it holds a connection, the channel.
func (s *syncLayer) healthChecker() *health.Checker {
	checker := health.NewChecker(0)
	checker.Add("checkpoint", health.CheckpointProbe(s.kv, s.Bus.Names().PingKey))
	if conn, ok := s.channel.(health.Connector); ok {
		checker.Add("channel", health.ConnectionProbe(conn))
	}
	return checker
}

func (s *syncLayer) Close() {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close sync channel")
		}
	}
	if err := s.kv.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close checkpoint store")
	}
}
