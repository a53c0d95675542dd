// Package bus wraps the NATS JetStream client used to publish outbox events
// and to consume them for audit logging and cache invalidation.
package bus

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	log  *slog.Logger
}

// Connect dials NATS and initializes a JetStream context. It retries the
// initial connection and reconnects indefinitely on drop: a service that
// owns a durable outbox must not wedge on a transient broker outage.
func Connect(url string, log *slog.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	log.Info("bus connected", "url", url)
	return &Client{Conn: nc, JS: js, log: log}, nil
}

// Close drains the connection, flushing in-flight publishes and
// subscription deliveries before closing. Falls back to a hard Close if
// Drain itself errors (e.g. already disconnected).
func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}
