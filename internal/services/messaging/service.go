package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/models"
)

// Publisher is a models.MessagePublisher that can be shut down
type Publisher interface {
	models.MessagePublisher
	IsConnected() bool
	Shutdown(ctx context.Context) error
}

// Service publishes JSON messages over NATS
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

// NewService connects to cfg.NatsURL
func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name(cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

// NewPublisher returns a NATS publisher when enabled and reachable,
// otherwise a publisher that drops every message.
func NewPublisher(cfg *config.Config) Publisher {
	if !cfg.NatsEnabled {
		log.Info().Msg("NATS disabled, crossing events and job results will not be published")
		return NoopPublisher{}
	}

	svc, err := NewService(cfg)
	if err != nil {
		log.Error().Err(err).Msg("NATS unavailable, continuing without publishing")
		return NoopPublisher{}
	}
	return svc
}

// Publish marshals data as JSON and publishes it on subject
func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

// Subscribe delivers raw payloads published on subject to handler
func (s *Service) Subscribe(subject string, handler func([]byte)) (*nats.Subscription, error) {
	return s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}

// NoopPublisher drops every message
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }

func (NoopPublisher) IsConnected() bool { return false }

func (NoopPublisher) Shutdown(context.Context) error { return nil }
