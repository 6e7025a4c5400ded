// Package notice publishes committed lifecycle events to RabbitMQ, where the
// notice service turns them into user-facing notices.
package notice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocomet/ride-pooling/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned when publishing on a closed publisher
var ErrClosed = errors.New("notice publisher is closed")

// Config holds RabbitMQ configuration
type Config struct {
	Host       string
	Port       string
	User       string
	Password   string
	VHost      string
	Exchange   string
	MaxRetries int
}

// URL builds the AMQP connection URL
func (c Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.VHost,
	}
	return u.String()
}

// Publisher sends notices to a durable topic exchange
type Publisher struct {
	cfg    Config
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.RWMutex
	closed bool
	logger *logger.Logger
}

// Dial connects to RabbitMQ, retrying with backoff, and declares the exchange
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	p := &Publisher{cfg: cfg, logger: log}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	delay := time.Second

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = p.connect(); err == nil {
			log.Info("Connected to RabbitMQ",
				logger.String("exchange", cfg.Exchange),
				logger.Int("attempt", attempt),
			)
			return p, nil
		}

		log.Warn("RabbitMQ connection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_retries", retries),
			logger.Err(err),
		)
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = delay * 3 / 2
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retries, err)
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.cfg.URL())
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()
	return nil
}

// Publish sends payload as JSON with the given routing key. A dropped
// connection is re-established once before giving up.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	err = p.publish(ctx, routingKey, body)
	if err == nil || errors.Is(err, ErrClosed) {
		return err
	}

	p.logger.Warn("Notice publish failed, reconnecting",
		logger.String("routing_key", routingKey),
		logger.Err(err),
	)
	if err := p.connect(); err != nil {
		return err
	}
	return p.publish(ctx, routingKey, body)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.RLock()
	ch, closed := p.ch, p.closed
	p.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("rabbitmq channel not available")
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(
		publishCtx,
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Close closes the channel and connection
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.logger.Info("RabbitMQ connection closed")
}
