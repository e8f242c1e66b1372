// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"agrichat-web/internal/config"
	"agrichat-web/pkg/events"
	"agrichat-web/pkg/log"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher 使用 kafka.Writer 发布领域事件。
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher 初始化 Kafka 生产者。brokers 以逗号分隔。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	brokers := strings.Split(cfg.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	log.Infof("Kafka 生产者初始化成功，主题: %s", cfg.Topic)
	return &Publisher{writer: w}
}

// Publish 序列化事件并写入 Kafka。
func (p *Publisher) Publish(ctx context.Context, key string, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Publisher)(nil)
