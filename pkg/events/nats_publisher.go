// 文件: pkg/events/nats_publisher.go
// 账本事件发布器 (NATS)
//
// 与 KafkaPublisher 同一接口，本地开发用

package events

import (
	"farm.com/pkg/farm"
	"farm.com/pkg/nats"
)

var _ farm.EventPublisher = (*NATSPublisher)(nil)

// NATSPublisher NATS 事件发布器
type NATSPublisher struct {
	pub *nats.Publisher
}

// NewNATSPublisher 创建发布器
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	pub, err := nats.NewPublisher(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{pub: pub}, nil
}

// Publish 发布账本事件
func (p *NATSPublisher) Publish(ev *farm.Event) error {
	return p.pub.Publish(SubjectLedgerEvents, Wrap(ev))
}

// Close 关闭发布器
func (p *NATSPublisher) Close() {
	p.pub.Close()
}
