// Package queue connects the outbox and inbox tables to RabbitMQ: a
// connection manager with reconnect, an outbox publisher, an inbox recorder,
// and an inbox dispatcher.
package queue

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("not connected to RabbitMQ")
	ErrShutdown     = errors.New("connection is shutting down")
)

type ConnConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectDelay time.Duration
}

// Conn wraps one AMQP connection and channel and redials on broker-side
// close until MaxReconnects is exhausted.
type Conn struct {
	cfg ConnConfig
	log *slog.Logger

	mu        sync.RWMutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	closed    bool
	redialled int
}

func NewConn(cfg ConnConfig, log *slog.Logger) *Conn {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Conn{cfg: cfg, log: log}
}

func (c *Conn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrShutdown
	}

	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = ch
	c.redialled = 0

	go c.watchClose(conn)

	c.log.Info("connected to RabbitMQ")
	return nil
}

func (c *Conn) watchClose(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error))
	if err != nil {
		c.log.Warn("RabbitMQ connection closed", "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.redialled >= c.cfg.MaxReconnects {
		return
	}
	c.redialled++
	c.log.Info("reconnecting to RabbitMQ", "attempt", c.redialled, "max", c.cfg.MaxReconnects)

	// Back off outside the lock so Channel() callers keep getting a fast
	// ErrNotConnected instead of blocking for the whole delay.
	go func() {
		time.Sleep(c.cfg.ReconnectDelay)
		if err := c.Connect(); err != nil {
			c.log.Error("reconnect failed", "err", err)
		}
	}()
}

func (c *Conn) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil || c.closed {
		return nil, ErrNotConnected
	}
	return c.channel, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// DeclareTopology sets up the shared topic exchange, the service's inbox
// queue, and its bind patterns. Declarations are idempotent so both services
// can race at startup.
func DeclareTopology(ch *amqp.Channel, exchange, queueName string, bindPatterns []string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}
	for _, pattern := range bindPatterns {
		if err := ch.QueueBind(q.Name, pattern, exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}
