package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// =====================================================================================
// REVISION EVENTS EXCHANGE
// =====================================================================================
// Every committed campaign revision is announced on a durable topic exchange with
// routing key campaign.revision.<change kind>. Downstream consumers bind their own
// queues; this process only declares the exchange and publishes.
// - One long-lived connection, re-dialled lazily after the broker closes it.
// - A fresh channel per publish (channels are not safe for concurrent use).
// - Persistent delivery, JSON body, MessageId set so consumers can dedupe.
// =====================================================================================

// ExchangePublisher publishes JSON messages to a single topic exchange.
type ExchangePublisher struct {
	url      string
	exchange string
	secret   string
	log      zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewExchangePublisher dials the broker and declares the exchange. When
// signingSecret is set every message carries an HMAC of its body in the
// x-signature header.
func NewExchangePublisher(amqpURL, exchange, signingSecret string, log zerolog.Logger) (*ExchangePublisher, error) {
	p := &ExchangePublisher{
		url:      withConnectionParams(amqpURL),
		exchange: exchange,
		secret:   signingSecret,
		log:      log.With().Str("component", "exchange_publisher").Str("exchange", exchange).Logger(),
	}
	ch, err := p.channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	p.log.Info().Msg("exchange declared")
	return p, nil
}

// Publish marshals payload and publishes it with the given routing key.
func (p *ExchangePublisher) Publish(ctx context.Context, routingKey, messageID string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var headers amqp.Table
	if p.secret != "" {
		headers = amqp.Table{SignatureHeader: SignEvent(routingKey, body, p.secret)}
	}

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.log.Debug().
		Str("routing_key", routingKey).
		Str("message_id", messageID).
		Int("size_bytes", len(body)).
		Msg("published")
	return nil
}

// Close closes the underlying connection.
func (p *ExchangePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *ExchangePublisher) channel() (*amqp.Channel, error) {
	conn, err := p.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

func (p *ExchangePublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	closeChan := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeChan)
	go func() {
		if err := <-closeChan; err != nil {
			p.log.Warn().Err(err).Msg("connection closed")
			p.mu.Lock()
			if p.conn == conn {
				p.conn = nil
			}
			p.mu.Unlock()
		}
	}()

	p.conn = conn
	p.log.Info().Msg("connection established")
	return conn, nil
}

// withConnectionParams adds heartbeat and connection timeout parameters unless
// the URL already sets them.
func withConnectionParams(amqpURL string) string {
	if strings.Contains(amqpURL, "heartbeat=") || strings.Contains(amqpURL, "connection_timeout=") {
		return amqpURL
	}
	if strings.Contains(amqpURL, "?") {
		return amqpURL + "&heartbeat=30&connection_timeout=30"
	}
	return amqpURL + "?heartbeat=30&connection_timeout=30"
}
