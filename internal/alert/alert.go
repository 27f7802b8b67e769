// Package alert tells operators that a campaign was halted.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

const TypeBanSuspected = "ban_suspected"

type Alert struct {
	Type       string        `json:"type"`
	TenantID   int           `json:"tenant_id"`
	CampaignID int           `json:"campaign_id"`
	Channel    model.Channel `json:"channel"`
	Failures   int           `json:"failures"`
	Attempts   int           `json:"attempts"`
	Message    string        `json:"message"`
	At         time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, a Alert) error
}

// LogPublisher writes alerts to the log only.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, a Alert) error {
	p.Logger.Warn().
		Str("type", a.Type).
		Int("tenant_id", a.TenantID).
		Int("campaign_id", a.CampaignID).
		Str("channel", string(a.Channel)).
		Int("failures", a.Failures).
		Int("attempts", a.Attempts).
		Msg(a.Message)
	return nil
}

// AMQPPublisher sends alerts as persistent JSON messages to a durable queue.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    a.At,
			Type:         a.Type,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Multi fans an alert out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, a Alert) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
