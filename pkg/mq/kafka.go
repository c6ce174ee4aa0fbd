// Package mq 提供 Kafka producer 封装，用于发布领域事件
package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/greeksengine/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int // 毫秒
	BatchTimeout time.Duration
}

// Message 待发送的消息
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll, // 等待所有副本确认
		MaxAttempts:            cfg.MaxRetries,
		BatchTimeout:           batchTimeout,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer}, nil
}

func toKafka(m Message) kafka.Message {
	msg := kafka.Message{
		Topic: m.Topic,
		Key:   []byte(m.Key),
		Value: m.Value,
	}
	for k, v := range m.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return msg
}

// Send 发送消息，同一 key 的消息进入同一分区
func (kp *KafkaProducer) Send(ctx context.Context, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		if m.Topic == "" {
			return fmt.Errorf("kafka message %q has no topic", m.Key)
		}
		batch = append(batch, toKafka(m))
	}

	if err := kp.writer.WriteMessages(ctx, batch...); err != nil {
		logger.Error(ctx, "Failed to send Kafka messages",
			"topic", messages[0].Topic,
			"count", len(batch),
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "Kafka messages sent",
		"topic", messages[0].Topic,
		"count", len(batch),
	)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
