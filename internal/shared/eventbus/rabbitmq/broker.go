// Package rabbitmq 基于 RabbitMQ 的审核事件总线
//
// 事件发布到 fanout exchange：
//   - 持久队列 Queue 绑定到 exchange，供下游服务（通知、同步）消费
//   - 每个订阅方声明独占的临时队列，接收全部事件
//   - 无法解码的消息转入 Queue + "-dlq"
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"automarket/internal/shared/eventbus"
	"automarket/internal/shared/model"
	"automarket/pkg/logging"
)

// Config RabbitMQ 配置
type Config struct {
	URL           string
	Exchange      string
	Queue         string
	PrefetchCount int
}

// Broker RabbitMQ 事件总线
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *logging.Logger
	mu      sync.Mutex
}

// DLQName 死信队列名称
func (c Config) DLQName() string {
	return c.Queue + "-dlq"
}

// NewBroker 连接 RabbitMQ 并声明拓扑
func NewBroker(cfg Config, logger *logging.Logger) (*Broker, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "moderation.events"
	}
	if cfg.Queue == "" {
		cfg.Queue = "moderation-events"
	}
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 10
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	b := &Broker{conn: conn, channel: channel, cfg: cfg, logger: logger}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}

	logger.Infow("connected to rabbitmq", "exchange", cfg.Exchange, "queue", cfg.Queue)
	return b, nil
}

func (b *Broker) declareTopology() error {
	if err := b.channel.ExchangeDeclare(
		b.cfg.Exchange, // name
		"fanout",       // kind
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.cfg.Exchange, err)
	}

	for _, name := range []string{b.cfg.Queue, b.cfg.DLQName()} {
		if _, err := b.channel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	if err := b.channel.QueueBind(b.cfg.Queue, "", b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", b.cfg.Queue, err)
	}
	return nil
}

// PublishModerationEvent 发布审核事件（持久化消息）
func (b *Broker) PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error {
	body, err := eventbus.Encode(event)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.channel.PublishWithContext(
		ctx,
		b.cfg.Exchange,       // exchange
		string(event.Action), // routing key（fanout 忽略）
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         "moderation." + string(event.Action),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish moderation event: %w", err)
	}
	return nil
}

// SubscribeModerationEvents 声明独占临时队列并消费
func (b *Broker) SubscribeModerationEvents(ctx context.Context) (<-chan *model.ModerationEvent, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(b.cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	out := make(chan *model.ModerationEvent, eventbus.SubscriberBuffer)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				event, err := eventbus.Decode(msg.Body)
				if err != nil {
					b.deadLetter(ctx, msg, err)
					msg.Ack(false)
					continue
				}
				select {
				case out <- event:
					msg.Ack(false)
				case <-ctx.Done():
					msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

// deadLetter 将无法处理的消息转入死信队列
func (b *Broker) deadLetter(ctx context.Context, msg amqp.Delivery, cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.channel.PublishWithContext(
		ctx,
		"",
		b.cfg.DLQName(),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers: amqp.Table{
				"x-original-exchange": b.cfg.Exchange,
				"x-error":             cause.Error(),
			},
			Timestamp: time.Now(),
		},
	)
	if err != nil {
		b.logger.Errorw("failed to dead-letter moderation message", "error", err, "cause", cause)
		return
	}
	b.logger.Warnw("moderation message moved to dlq", "queue", b.cfg.DLQName(), "cause", cause)
}

// Close 关闭通道与连接
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ eventbus.EventBus = (*Broker)(nil)
