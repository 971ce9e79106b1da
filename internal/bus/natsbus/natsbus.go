// Package natsbus publishes core notifications on NATS subjects.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultPrefix is prepended to every subject when none is configured.
const DefaultPrefix = "migchat"

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher implements core.Publisher on top of a NATS connection.
type Publisher struct {
	nc     conn
	prefix string
	log    *zerolog.Logger
}

// Config describes the NATS connection.
type Config struct {
	URL    string
	Prefix string
	Name   string
}

// Connect dials NATS and returns a publisher. The connection reconnects
// forever in the background.
func Connect(cfg Config, logger *zerolog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	if cfg.Name == "" {
		cfg.Name = "migchat-gateway"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("prefix", cfg.Prefix).Msg("nats publisher ready")
	return newPublisher(nc, cfg.Prefix, logger), nil
}

func newPublisher(nc conn, prefix string, logger *zerolog.Logger) *Publisher {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{nc: nc, prefix: prefix, log: logger}
}

// Subject returns the full subject of a topic.
func (p *Publisher) Subject(topic string) string {
	return p.prefix + "." + topic
}

// Publish marshals payload as JSON and publishes it on the topic subject.
// Core NATS publishing is fire-and-forget, so ctx is only checked up front.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	subject := p.Subject(topic)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug().Str("subject", subject).Int("bytes", len(data)).Msg("notice published")
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
