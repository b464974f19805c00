package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/excon/go/internal/exercise/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for NATSChannel.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS settings for subject.
func DefaultNATSConfig(subject string) NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       subject,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSChannel broadcasts sync messages over core NATS publish/subscribe. Messages sent
// while a process is disconnected are lost; it catches up from the checkpoint.
type NATSChannel struct {
	nc      *nats.Conn
	subject string
}

// NewNATSChannel connects to cfg.URL.
func NewNATSChannel(cfg NATSConfig) (*NATSChannel, error) {
	opts := []nats.Option{
		nats.Name("excon"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", cfg.Subject).Msg("connected sync channel to NATS")
	return &NATSChannel{nc: nc, subject: cfg.Subject}, nil
}

func (c *NATSChannel) Send(_ context.Context, msg events.Message) error {
	data, err := events.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", c.subject, err)
	}
	return nil
}

func (c *NATSChannel) Listen(fn func(events.Message)) (func(), error) {
	sub, err := c.nc.Subscribe(c.subject, func(m *nats.Msg) {
		msg, err := events.Decode(m.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", m.Subject).Msg("dropping malformed sync message")
			return
		}
		fn(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", c.subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Warn().Err(err).Str("subject", c.subject).Msg("failed to unsubscribe")
		}
	}, nil
}

// Connected reports whether the NATS connection is currently up.
func (c *NATSChannel) Connected() bool {
	return c.nc.IsConnected()
}

func (c *NATSChannel) Close() error {
	c.nc.Close()
	return nil
}
