package realtime

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/service"
)

const eventExchange = "chat_events"

// EventBridge 把业务事件经 RabbitMQ fanout 交换机中转后再分发给本
// 进程的 Hub，多实例部署时每个实例都能收到全量事件。
// 发布失败只记监控，已落库的消息不受影响。
type EventBridge struct {
	conn *amqp.Connection
	hub  *Hub

	mu sync.Mutex
	ch *amqp.Channel
}

// NewEventBridge 创建事件桥
func NewEventBridge(conn *amqp.Connection, hub *Hub) *EventBridge {
	return &EventBridge{conn: conn, hub: hub}
}

// Emit 发布一条事件到交换机
func (b *EventBridge) Emit(topic, name string, payload interface{}) {
	if b == nil || b.conn == nil {
		// MQ 不可用时直接走进程内分发
		if b != nil && b.hub != nil {
			b.hub.Broadcast(Event{Topic: topic, Name: name, Payload: payload})
		}
		return
	}

	body, err := json.Marshal(Event{Topic: topic, Name: name, Payload: payload})
	if err != nil {
		zap.S().Warnw("event marshal failed", "topic", topic, "name", name, "err", err)
		return
	}

	ch, err := b.channel()
	if err != nil {
		service.GetMonitor().RecordMQError()
		zap.S().Warnw("mq channel failed", "err", err)
		return
	}
	err = ch.PublishWithContext(
		context.Background(),
		eventExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		service.GetMonitor().RecordMQError()
		zap.S().Warnw("event publish failed", "topic", topic, "name", name, "err", err)
		b.resetChannel()
	}
}

// Run 消费交换机并注入 Hub，阻塞直到 ctx 取消或连接断开
func (b *EventBridge) Run(ctx context.Context) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareExchange(ch); err != nil {
		return err
	}
	// 每个实例一个独立的自动删除队列，实现全量订阅
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", eventExchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	zap.S().Infow("event bridge consuming", "queue", q.Name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			var ev Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				zap.S().Warnw("bad event payload", "err", err)
				continue
			}
			b.hub.Broadcast(ev)
		}
	}
}

func (b *EventBridge) channel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		return b.ch, nil
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		return nil, err
	}
	b.ch = ch
	return ch, nil
}

func (b *EventBridge) resetChannel() {
	b.mu.Lock()
	if b.ch != nil {
		b.ch.Close()
		b.ch = nil
	}
	b.mu.Unlock()
}

func declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(eventExchange, "fanout", false, false, false, false, nil)
}
