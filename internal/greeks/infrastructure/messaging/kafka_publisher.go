// Package messaging 将领域事件发布到 Kafka
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/pkg/mq"
)

// Producer 消息生产者，pkg/mq.KafkaProducer 满足该接口
type Producer interface {
	Send(ctx context.Context, messages ...mq.Message) error
}

// KafkaEventPublisher 实现 EventPublisher 接口，事件以 JSON 编码，事件类型写入消息头
type KafkaEventPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(producer Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishGreeksCalculated 发布希腊字母计算完成事件
func (p *KafkaEventPublisher) PublishGreeksCalculated(ctx context.Context, event domain.GreeksCalculatedEvent) error {
	return p.publishEvent(ctx, domain.EventGreeksCalculated, event.RequestID, event)
}

// PublishVerificationCompleted 发布交叉校验完成事件
func (p *KafkaEventPublisher) PublishVerificationCompleted(ctx context.Context, event domain.VerificationCompletedEvent) error {
	return p.publishEvent(ctx, domain.EventVerificationCompleted, event.RequestID, event)
}

// PublishPortfolioAggregated 发布组合汇总完成事件
func (p *KafkaEventPublisher) PublishPortfolioAggregated(ctx context.Context, event domain.PortfolioAggregatedEvent) error {
	return p.publishEvent(ctx, domain.EventPortfolioAggregated, event.RunID, event)
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return p.producer.Send(ctx, mq.Message{
		Topic:   p.topic,
		Key:     key,
		Value:   payload,
		Headers: map[string]string{"event_type": eventType},
	})
}

var _ domain.EventPublisher = (*KafkaEventPublisher)(nil)
