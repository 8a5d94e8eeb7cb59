// 文件: pkg/kafka/producer.go
// 通用 Kafka 生产者
//
// 异步发送，错误走独立 goroutine 记日志。
// 任意消息类型通过 Message 接口接入 (账本事件见 pkg/events)。

package kafka

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// =============================================================================
// Message 接口
// =============================================================================

// Message 通用消息接口
type Message interface {
	Topic() string          // 目标 topic
	Key() string            // 分区 key (相同 key 保证顺序)
	Value() ([]byte, error) // 序列化后的消息体
}

// =============================================================================
// Producer 配置
// =============================================================================

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers        []string      // broker 地址列表
	RequiredAcks   int           // 0=不等待, 1=leader 确认, -1=全部确认
	Compression    string        // none, gzip, snappy, lz4, zstd
	FlushFrequency time.Duration // 刷新间隔
	FlushMessages  int           // 批量消息数
	MaxRetries     int
}

// DefaultProducerConfig 默认配置
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:        brokers,
		RequiredAcks:   1,
		Compression:    "snappy",
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  100,
		MaxRetries:     3,
	}
}

// =============================================================================
// Producer
// =============================================================================

// Producer 通用 Kafka 生产者
type Producer struct {
	producer sarama.AsyncProducer
	config   ProducerConfig

	sentCount  atomic.Int64
	errorCount atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewProducer 创建生产者
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()

	switch cfg.RequiredAcks {
	case 0:
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch cfg.Compression {
	case "gzip":
		saramaConfig.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaConfig.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaConfig.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaConfig.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaConfig.Producer.Compression = sarama.CompressionNone
	}

	saramaConfig.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaConfig.Producer.Flush.Messages = cfg.FlushMessages
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries

	// 异步模式: 只关心失败
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		config:   cfg,
	}

	p.wg.Add(1)
	go p.handleErrors()

	return p, nil
}

// Send 发送消息 (异步)
func (p *Producer) Send(msg Message) error {
	if p.closed.Load() {
		return fmt.Errorf("producer is closed")
	}

	data, err := msg.Value()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: msg.Topic(),
		Key:   sarama.StringEncoder(msg.Key()),
		Value: sarama.ByteEncoder(data),
	}
	p.sentCount.Add(1)
	return nil
}

// SendRaw 发送原始消息
func (p *Producer) SendRaw(topic, key string, value []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("producer is closed")
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	p.sentCount.Add(1)
	return nil
}

func (p *Producer) handleErrors() {
	defer p.wg.Done()

	for err := range p.producer.Errors() {
		p.errorCount.Add(1)
		log.Printf("[Kafka] send error: topic=%s err=%v", err.Msg.Topic, err.Err)
	}
}

// =============================================================================
// 统计与生命周期
// =============================================================================

// ProducerStats 统计信息
type ProducerStats struct {
	SentCount  int64
	ErrorCount int64
}

// Stats 获取统计信息
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		SentCount:  p.sentCount.Load(),
		ErrorCount: p.errorCount.Load(),
	}
}

// Close 关闭生产者，等待错误处理收尾
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	err := p.producer.Close()
	p.wg.Wait()
	return err
}
