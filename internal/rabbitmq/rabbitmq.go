package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"scanner/internal/config"
)

var (
	// ErrReconnecting is returned instead of waiting for a dropped broker
	ErrReconnecting = errors.New("rabbitmq reconnect in progress")
	ErrClosed       = errors.New("rabbitmq client closed")
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

type Client interface {
	Close() error

	DeclareExchange(name, kind string) error
	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error

	Health() error
}

// client guards conn and channel with mu. Dialing and backoff happen
// outside the lock so publishers never queue behind a reconnect.
type client struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	config       config.RabbitMQConfig
	mu           sync.Mutex
	reconnecting bool
	closed       bool
	done         chan struct{}
	notifyClose  chan *amqp.Error
}

func newClient(cfg config.RabbitMQConfig) *client {
	return &client{config: cfg, done: make(chan struct{})}
}

func NewClientFromConfig(cfg config.RabbitMQConfig) (Client, error) {
	c := newClient(cfg)

	conn, ch, err := c.dial()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.setupReconnect()
	c.mu.Unlock()

	return c, nil
}

func (c *client) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(c.config.URL, amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open RabbitMQ channel")
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	log.Info().Str("exchange", c.config.ExchangeName).Msg("RabbitMQ connection established")

	return conn, ch, nil
}

// setupReconnect watches the current connection. Callers hold c.mu.
func (c *client) setupReconnect() {
	c.notifyClose = c.conn.NotifyClose(make(chan *amqp.Error, 1))
	notify := c.notifyClose

	go func() {
		for err := range notify {
			log.Warn().
				Str("reason", err.Reason).
				Int("code", err.Code).
				Bool("recover", err.Recover).
				Msg("RabbitMQ connection closed, attempting to reconnect...")

			c.doReconnect()
		}
	}()
}

func (c *client) isReconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting
}

func (c *client) doReconnect() {
	c.mu.Lock()
	if c.reconnecting || c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	oldConn, oldChannel := c.conn, c.channel
	c.conn, c.channel = nil, nil
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldConn != nil && !oldConn.IsClosed() {
		oldConn.Close()
	}

	backoff := 1 * time.Second

	for {
		log.Info().Dur("backoff", backoff).Msg("Attempting to reconnect to RabbitMQ")

		conn, ch, err := c.dial()
		if err == nil {
			c.mu.Lock()
			c.reconnecting = false
			if c.closed {
				c.mu.Unlock()
				ch.Close()
				conn.Close()
				return
			}
			c.conn, c.channel = conn, ch
			c.setupReconnect()
			c.mu.Unlock()

			log.Info().Msg("Successfully reconnected to RabbitMQ")
			return
		}

		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			return
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *client) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnecting {
		return ErrReconnecting
	}

	if c.conn == nil || c.channel == nil {
		return fmt.Errorf("nil connection or channel")
	}

	if c.conn.IsClosed() {
		log.Error().Msg("RabbitMQ connection is closed")
		return fmt.Errorf("connection is closed")
	}

	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ channel")
			return fmt.Errorf("channel close error: %w", err)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ connection")
			return fmt.Errorf("connection close error: %w", err)
		}
	}

	log.Info().Msg("RabbitMQ connection and channel closed")
	return nil
}

func (c *client) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureOpen(); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      headers,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("exchange", exchange).
			Str("routingKey", routingKey).
			Msg("Failed to publish message")
		return err
	}

	log.Debug().
		Str("exchange", exchange).
		Str("routingKey", routingKey).
		Int("size", len(body)).
		Msg("Published message")

	return nil
}
