package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autotrader/internal/application/service/lifecycle"
	"autotrader/internal/config"
	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrPricesNotReady = errors.New("prices not ready")

// PriceSource fills prices missing from an override. Negative means not ready.
type PriceSource interface {
	BidPrice(symbol string) decimal.Decimal
	AskPrice(symbol string) decimal.Decimal
}

// Consumer reads manual override recommendations from a fanout exchange and
// hands them to a router, normally the worker lifecycle manager.
type Consumer struct {
	cfg      config.RabbitMQConfig
	router   interfaces.RecommendationSink
	prices   PriceSource
	logger   *logrus.Entry
	validate *validator.Validate
	now      func() time.Time

	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
}

// NewConsumer prepares a consumer for the override exchange.
func NewConsumer(cfg config.RabbitMQConfig, router interfaces.RecommendationSink, prices PriceSource, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.OverridesExchange == "" {
		return nil, errors.New("overrides exchange is required")
	}
	if router == nil || prices == nil {
		return nil, errors.New("override consumer requires router and prices")
	}
	return &Consumer{
		cfg:      cfg,
		router:   router,
		prices:   prices,
		logger:   logger.WithField("component", "override_consumer"),
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// Run consumes until ctx is cancelled or the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	closed := c.conn.NotifyClose(make(chan *amqp.Error, 1))
	var err error
	select {
	case <-ctx.Done():
	case amqpErr := <-closed:
		if amqpErr != nil {
			err = fmt.Errorf("rabbitmq connection closed: %w", amqpErr)
		}
	}
	c.Close()
	return err
}

// Start establishes the AMQP connection and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		c.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.channel = ch
	exchange := c.cfg.OverridesExchange
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("declare override queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("start consume: %w", err)
	}

	c.wg.Add(1)
	go c.consumeLoop(ctx, deliveries)
	c.logger.WithField("exchange", exchange).Info("override consumer started")
	return nil
}

// Close stops consumption and releases the connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.Handle(ctx, delivery.Body); err != nil {
				c.logger.WithError(err).Warn("override rejected")
				_ = delivery.Nack(false, false)
				continue
			}
			if err := delivery.Ack(false); err != nil {
				c.logger.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

// Handle decodes one override and routes it. Overrides for symbols without a
// running worker are dropped with a warning and reported as handled.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var msg RecommendationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	rec, err := msg.toRecommendation(c.validate)
	if err != nil {
		return err
	}
	if err := c.fillPrices(&rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}

	log := c.logger.WithFields(logrus.Fields{"symbol": rec.Symbol, "action": rec.Action.String()})
	if err := c.router.Publish(ctx, rec); err != nil {
		if errors.Is(err, lifecycle.ErrNoWorker) {
			log.WithError(err).Warn("override dropped")
			return nil
		}
		return fmt.Errorf("route override: %w", err)
	}
	log.Info("override routed")
	return nil
}

func (c *Consumer) fillPrices(rec *trading.Recommendation) error {
	if rec.BidPrice.IsZero() {
		rec.BidPrice = c.prices.BidPrice(rec.Symbol)
	}
	if rec.AskPrice.IsZero() {
		rec.AskPrice = c.prices.AskPrice(rec.Symbol)
	}
	if !rec.BidPrice.IsPositive() || !rec.AskPrice.IsPositive() {
		return fmt.Errorf("%w: %s", ErrPricesNotReady, rec.Symbol)
	}
	return nil
}
