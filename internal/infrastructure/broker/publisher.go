// Package broker connects the engine to RabbitMQ: emitted recommendations are
// published to a fanout exchange and manual overrides are consumed from
// another.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	json "github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// repeatInterval is how long an unchanged action is suppressed.
const repeatInterval = 30 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type published struct {
	action trading.Action
	at     time.Time
}

// Publisher publishes recommendations to a fanout exchange. A symbol's action
// is sent when it changes, and again once repeatInterval has passed.
type Publisher struct {
	channel  amqpChannel
	exchange string
	logger   *logrus.Entry
	now      func() time.Time

	mu   sync.Mutex
	last map[string]published
}

var _ interfaces.RecommendationSink = (*Publisher)(nil)

// NewPublisher opens a channel on conn and declares the exchange.
func NewPublisher(conn *amqp.Connection, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return newPublisher(ch, exchange, logger), nil
}

func newPublisher(ch amqpChannel, exchange string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.WithField("component", "recommendation_publisher"),
		now:      time.Now,
		last:     make(map[string]published),
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Error("close rabbitmq channel")
	}
}

// Publish sends rec as JSON unless it repeats the last action of its symbol.
// Messages are transient: a recommendation is superseded by the next one.
func (p *Publisher) Publish(ctx context.Context, rec trading.Recommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if prev, ok := p.last[rec.Symbol]; ok && prev.action == rec.Action && now.Sub(prev.at) < repeatInterval {
		return nil
	}

	body, err := json.Marshal(newRecommendationMessage(rec))
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    now.UTC(),
		Type:         rec.Action.String(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish recommendation %s: %w", rec.Symbol, err)
	}
	p.last[rec.Symbol] = published{action: rec.Action, at: now}
	return nil
}
