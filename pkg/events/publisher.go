// 文件: pkg/events/publisher.go
// 账本事件发布器 (Kafka)
//
// 实现 farm.EventPublisher: 账本提交成功后把事件推到 Kafka，
// 下游 (pkg/store.JournalWriter) 异步落盘。

package events

import (
	"farm.com/pkg/farm"
	"farm.com/pkg/kafka"
)

// 确保实现了接口
var _ farm.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher Kafka 事件发布器
type KafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher 创建发布器
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(brokers))
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{producer: producer}, nil
}

// Publish 发布账本事件
func (p *KafkaPublisher) Publish(ev *farm.Event) error {
	return p.producer.Send(Wrap(ev))
}

// Stats 生产者统计
func (p *KafkaPublisher) Stats() kafka.ProducerStats {
	return p.producer.Stats()
}

// Close 关闭发布器
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
