package rabbitmq

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureOpen fails fast on a dropped connection and hands the redial to a
// background reconnect. Callers hold c.mu.
func (c *client) ensureOpen() error {
	if c.closed {
		return ErrClosed
	}
	if c.reconnecting {
		return ErrReconnecting
	}
	if c.conn != nil && c.channel != nil && !c.conn.IsClosed() {
		return nil
	}

	go c.doReconnect()
	return ErrReconnecting
}

func (c *client) DeclareExchange(name, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureOpen(); err != nil {
		return fmt.Errorf("channel unavailable: %w", err)
	}

	err := c.channel.ExchangeDeclare(
		name, kind, true, false, false, false, nil,
	)
	if err != nil {
		log.Error().Err(err).Str("exchange", name).Msg("Failed to declare exchange")
	} else {
		log.Info().Str("exchange", name).Str("type", kind).Msg("Declared exchange")
	}
	return err
}
